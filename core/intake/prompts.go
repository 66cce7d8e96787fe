package intake

// Fixed chat strings.
const (
	PromptName         = "Hi! Enter the product name:"
	PromptPrice        = "Enter the product price (numbers only):"
	PromptDescription  = "Enter a short description of the product:"
	PromptCategory     = "Enter the product category name:"
	PromptCategoryMenu = "Choose a category or create a new one:"
	PromptNewCategory  = "Enter the name of the new category:"
	PromptPhoto        = "Please send the product photo:"

	// NewCategoryOption is the menu entry that branches into category creation.
	NewCategoryOption = "➕ Create new category"

	MsgEmptyInput      = "This field cannot be empty."
	MsgExpectText      = "Please answer with a text message."
	MsgExpectPhoto     = "Please send the product photo as an image."
	MsgCategoryFailed  = "⚠️ Could not save the category. Please try again."
	MsgSuccess         = "✅ Product created successfully!"
	MsgFailure         = "❌ Could not create the product. Send /start to try again."
	MsgCancelled       = "⛔ Operation cancelled."
	MsgNothingToCancel = "There is nothing to cancel. Send /start to add a product."
)

// maxMenuOptions caps the category quick replies.
const maxMenuOptions = 40
