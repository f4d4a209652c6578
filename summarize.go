package ragblade

import (
	"context"

	"go.uber.org/zap"

	"github.com/flarexio/ragblade/generator"
)

// summarize condenses the user and assistant turns of history into one
// paragraph. A generator failure yields SummaryFallback.
func (svc *service) summarize(ctx context.Context, history []generator.Message) string {
	messages := []generator.Message{
		{Role: generator.RoleSystem, Content: svc.cfg.Retrieval.SummaryPrompt},
	}

	for _, msg := range history {
		if msg.Role == generator.RoleUser || msg.Role == generator.RoleAssistant {
			messages = append(messages, msg)
		}
	}

	resp := svc.generator.Generate(ctx, messages)
	if !resp.Success {
		svc.log.Error("summarization failed",
			zap.String("action", "summarize"),
			zap.String("error_type", string(resp.ErrorType)),
		)

		return SummaryFallback
	}

	return resp.Content
}
