package data

import (
	"context"

	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/infra/llm"
)

// summaryRepo implements the summarizer on an OpenAI-compatible client
type summaryRepo struct {
	client *llm.Client
}

// NewSummaryRepo creates a summary repository
func NewSummaryRepo(client *llm.Client) repo.SummaryRepo {
	return &summaryRepo{client: client}
}

func (r *summaryRepo) Summarize(ctx context.Context, prompt string) (string, error) {
	return r.client.Complete(ctx, prompt)
}
