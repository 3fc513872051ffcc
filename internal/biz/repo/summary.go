package repo

import "context"

// SummaryRepo is the external text-generation service used for digests
type SummaryRepo interface {
	// Summarize sends a single prompt and returns the generated text
	Summarize(ctx context.Context, prompt string) (string, error)
}
