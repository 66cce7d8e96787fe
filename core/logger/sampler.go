package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler lets num out of every den events through. A zero ratio
// lets everything through.
type ratioSampler struct {
	mu       sync.Mutex
	num, den int
	seen     int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = 0
	if num <= 0 || den <= 0 {
		s.num, s.den = 0, 0
		return
	}
	s.num, s.den = min(num, den), den
}

func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	s.seen = s.seen%s.den + 1
	return s.seen <= s.num
}

// parseRatioSpec accepts "n/d" or "d" (1/d). Anything else yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if n, d, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
