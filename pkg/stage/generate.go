package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/prismrag/ragjobs/pkg/core"
)

// tokenStreamExecutor emits the response text one fragment per update.
// Progress is tokensEmitted / totalTokens; the total is known once the
// responder returns, which is the estimate revision point a real streaming
// backend would also have.
type tokenStreamExecutor struct {
	cfg Config
}

func (e *tokenStreamExecutor) Name() string { return StageTokenStream }

func (e *tokenStreamExecutor) Run(ctx context.Context, snap core.Snapshot, report Reporter) error {
	if err := inject(e.cfg.Fault, StageTokenStream, snap); err != nil {
		return err
	}
	if snap.Prompt == nil {
		return core.InvalidInput(core.ErrNilPayload)
	}

	text := e.cfg.Responder(snap.Prompt.Prompt)
	words := strings.Fields(text)
	if len(words) == 0 {
		report(1.0, core.Delta{})
		return nil
	}

	for i, word := range words {
		if err := pace(ctx, e.cfg.StepInterval); err != nil {
			return err
		}
		fragment := word
		if i > 0 {
			fragment = " " + word
		}
		report(float64(i+1)/float64(len(words)), core.Delta{Text: fragment})
	}
	return nil
}

// DefaultResponder is the canned assistant reply used until a real
// retrieval-and-inference backend is plugged in.
func DefaultResponder(prompt string) string {
	return fmt.Sprintf(
		"I understand you're asking about %q. Based on the uploaded documents in the "+
			"vector database, I can help you find relevant information. However, I notice "+
			"you haven't uploaded any documents yet. Please upload documents so I can "+
			"analyze and reference them in my responses.",
		prompt,
	)
}
