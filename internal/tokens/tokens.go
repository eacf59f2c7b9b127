// Package tokens estimates token counts for cost accounting. Estimates feed
// the loop's budget checks and the compactor's history bound; they only need
// to be stable and roughly proportional to real usage, not exact.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// initEncoder loads the cl100k_base BPE encoding on first use. Loading can
// fail offline because the encoding data is fetched lazily; the estimator
// then falls back to a character heuristic instead of failing the session.
func initEncoder() {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		encoder = enc
	})
}

// Estimate returns the approximate token count of text. With the BPE encoder
// available it counts real tokens; otherwise it estimates one token per four
// characters, which tracks English prose closely enough for budgeting.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	initEncoder()
	if encoder != nil {
		if n := len(encoder.Encode(text, nil, nil)); n > 0 {
			return n
		}
		return 1
	}
	n := (len(text) + 3) / 4
	if n == 0 {
		n = 1
	}
	return n
}
