package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request carries one user message to the responder collaborator.
type Request struct {
	ProjectID   string
	ProjectName string
	Message     string
	Model       string
	RagEnabled  bool
	// Context holds retrieved scraped snippets when RAG is enabled.
	Context []string
}

// Responder is the AI collaborator. It is invoked asynchronously by the
// transcript manager; implementations must honor ctx cancellation.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// SimulatedResponder stands in for a real model call. It answers after a
// fixed delay, echoing the request the way the real assistant surface
// frames it, and cites retrieved content when RAG is active.
type SimulatedResponder struct {
	// Delay models inference latency. Zero means answer immediately.
	Delay time.Duration
}

func (r *SimulatedResponder) Respond(ctx context.Context, req Request) (string, error) {
	if r.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.Delay):
		}
	}

	text := fmt.Sprintf("Processing your request with %s: %q", DisplayName(req.Model), req.Message)
	if req.RagEnabled {
		text += fmt.Sprintf(" (Using RAG with scraped content from project: %s)", req.ProjectName)
		if len(req.Context) > 0 {
			text += "\nRelevant scraped content:\n- " + strings.Join(req.Context, "\n- ")
		}
	}
	return text, nil
}
