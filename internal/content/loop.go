package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// ErrScreenedOut is returned when every attempt was flagged by the
// screener. The caller skips the send and retries next batch.
var ErrScreenedOut = errors.New("all drafts rejected by screener")

// DraftGenerator produces candidate drafts.
type DraftGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, req GenerateRequest) (Draft, error)
}

// DraftScreener scores drafts before dispatch.
type DraftScreener interface {
	Screen(ctx context.Context, from, to string, draft Draft) Verdict
}

// Pipeline runs generate-screen-regenerate until a draft passes or the
// attempt budget is spent.
type Pipeline struct {
	generator   DraftGenerator
	screener    DraftScreener
	maxAttempts int
}

// NewPipeline creates a content pipeline.
func NewPipeline(generator DraftGenerator, screener DraftScreener, maxAttempts int) *Pipeline {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pipeline{generator: generator, screener: screener, maxAttempts: maxAttempts}
}

// Produce returns a screened draft for the request. Generation failure
// (not screening) falls back to the step's static template, which is
// still screened. Each retry sees the accumulated screener feedback of
// the attempts before it.
func (p *Pipeline) Produce(ctx context.Context, from, to string, base GenerateRequest) (Draft, Verdict, error) {
	if !p.generator.Enabled() {
		return p.produceFromTemplate(ctx, from, to, base)
	}

	attempt := base
	var lastVerdict Verdict
	for i := 1; i <= p.maxAttempts; i++ {
		draft, err := p.generator.Generate(ctx, attempt)
		if err != nil {
			logger.Warn("generation failed, falling back to template",
				"step", base.Step.StepNumber, "attempt", i, "error", err.Error())
			return p.produceFromTemplate(ctx, from, to, base)
		}

		verdict := p.screener.Screen(ctx, from, to, draft)
		if !verdict.IsSpam {
			return draft, verdict, nil
		}

		lastVerdict = verdict
		logger.Info("draft flagged by screener",
			"step", base.Step.StepNumber, "attempt", i, "score", verdict.Score)
		attempt = attempt.WithFeedback(verdict.Suggestions)
	}

	return Draft{}, lastVerdict, fmt.Errorf("%w after %d attempts: %s", ErrScreenedOut, p.maxAttempts, lastVerdict.Report)
}

func (p *Pipeline) produceFromTemplate(ctx context.Context, from, to string, base GenerateRequest) (Draft, Verdict, error) {
	draft, err := FallbackDraft(base.Step, base.Lead, base.Profile)
	if err != nil {
		return Draft{}, Verdict{}, err
	}
	verdict := p.screener.Screen(ctx, from, to, draft)
	if verdict.IsSpam {
		return Draft{}, verdict, fmt.Errorf("%w: template draft flagged: %s", ErrScreenedOut, verdict.Report)
	}
	return draft, verdict, nil
}
