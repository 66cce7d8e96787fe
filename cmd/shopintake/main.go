// Command shopintake runs the product intake Telegram bot.
package main

func main() {
	Execute()
}
