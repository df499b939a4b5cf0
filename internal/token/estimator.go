// Package token estimates token-equivalent usage units for text.
package token

import "strings"

const defaultCharsPerToken = 4

// Estimator estimates tokens using a characters-per-token ratio.
// The heuristic (1 token ~ 4 chars) is good enough for usage metering;
// it is not an exact tokenizer.
type Estimator struct {
	CharsPerToken int // defaults to 4 if zero
}

func (e Estimator) ratio() int {
	if e.CharsPerToken <= 0 {
		return defaultCharsPerToken
	}
	return e.CharsPerToken
}

// Estimate returns the estimated token count for text. Empty or
// whitespace-only input yields 0, which callers use as the signal to
// skip usage logging.
func (e Estimator) Estimate(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	r := e.ratio()
	return (len(text) + r - 1) / r
}

// Estimate estimates tokens with the default ratio.
func Estimate(text string) int {
	return Estimator{}.Estimate(text)
}
