package content

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ignite/outreach-engine/internal/store"
)

type stubGenerator struct {
	enabled  bool
	drafts   []Draft
	errs     []error
	calls    int
	requests []GenerateRequest
}

func (g *stubGenerator) Enabled() bool { return g.enabled }

func (g *stubGenerator) Generate(ctx context.Context, req GenerateRequest) (Draft, error) {
	i := g.calls
	g.calls++
	g.requests = append(g.requests, req)
	if i < len(g.errs) && g.errs[i] != nil {
		return Draft{}, g.errs[i]
	}
	if i < len(g.drafts) {
		return g.drafts[i], nil
	}
	return Draft{}, fmt.Errorf("unexpected call %d", i)
}

type stubScreener struct {
	verdicts []Verdict
	calls    int
}

func (s *stubScreener) Screen(ctx context.Context, from, to string, draft Draft) Verdict {
	i := s.calls
	s.calls++
	if i < len(s.verdicts) {
		return s.verdicts[i]
	}
	return Verdict{}
}

func testRequest() GenerateRequest {
	return GenerateRequest{
		Lead: &store.Lead{FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com", Company: "Acme"},
		Step: &store.Step{
			StepNumber: 1,
			Subject:    "Hello {{ first_name }}",
			Template:   "Hi {{ first_name }}, wanted to reach out.",
		},
	}
}

func TestProduceFirstAttemptPasses(t *testing.T) {
	gen := &stubGenerator{enabled: true, drafts: []Draft{{Subject: "s", Body: "b", Source: SourceGenerated}}}
	scr := &stubScreener{verdicts: []Verdict{{Score: 0.5}}}
	p := NewPipeline(gen, scr, 3)

	draft, verdict, err := p.Produce(context.Background(), "a@b.com", "jane@acme.com", testRequest())
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if draft.Subject != "s" || verdict.Score != 0.5 {
		t.Errorf("draft = %+v verdict = %+v", draft, verdict)
	}
	if gen.calls != 1 || scr.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", gen.calls, scr.calls)
	}
}

func TestProduceFailFailPass(t *testing.T) {
	gen := &stubGenerator{enabled: true, drafts: []Draft{
		{Subject: "v1", Body: "b"},
		{Subject: "v2", Body: "b"},
		{Subject: "v3", Body: "b"},
	}}
	scr := &stubScreener{verdicts: []Verdict{
		{IsSpam: true, Score: 9, Suggestions: []string{"too salesy"}},
		{IsSpam: true, Score: 8, Suggestions: []string{"too long"}},
		{Score: 1},
	}}
	p := NewPipeline(gen, scr, 3)

	draft, _, err := p.Produce(context.Background(), "a@b.com", "jane@acme.com", testRequest())
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if draft.Subject != "v3" {
		t.Errorf("draft = %+v, want third attempt", draft)
	}

	// The third attempt must see both earlier rounds of feedback, and
	// the first attempt none.
	if len(gen.requests[0].Feedback) != 0 {
		t.Errorf("first attempt feedback = %v", gen.requests[0].Feedback)
	}
	if got := gen.requests[2].Feedback; len(got) != 2 || got[0] != "too salesy" || got[1] != "too long" {
		t.Errorf("third attempt feedback = %v", got)
	}
}

func TestProduceAllAttemptsFlagged(t *testing.T) {
	gen := &stubGenerator{enabled: true, drafts: []Draft{
		{Subject: "v1", Body: "b"}, {Subject: "v2", Body: "b"}, {Subject: "v3", Body: "b"},
	}}
	scr := &stubScreener{verdicts: []Verdict{
		{IsSpam: true, Score: 9}, {IsSpam: true, Score: 9}, {IsSpam: true, Score: 9},
	}}
	p := NewPipeline(gen, scr, 3)

	_, _, err := p.Produce(context.Background(), "a@b.com", "jane@acme.com", testRequest())
	if !errors.Is(err, ErrScreenedOut) {
		t.Errorf("error = %v, want ErrScreenedOut", err)
	}
	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want 3", gen.calls)
	}
}

func TestProduceGeneratorErrorFallsBackToTemplate(t *testing.T) {
	gen := &stubGenerator{enabled: true, errs: []error{errors.New("provider down")}}
	scr := &stubScreener{}
	p := NewPipeline(gen, scr, 3)

	draft, _, err := p.Produce(context.Background(), "a@b.com", "jane@acme.com", testRequest())
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if draft.Source != SourceTemplate {
		t.Errorf("source = %q, want template fallback", draft.Source)
	}
	if draft.Subject != "Hello Jane" {
		t.Errorf("subject = %q, template variables not rendered", draft.Subject)
	}
}

func TestProduceNoGeneratorUsesTemplate(t *testing.T) {
	gen := &stubGenerator{enabled: false}
	scr := &stubScreener{}
	p := NewPipeline(gen, scr, 3)

	draft, _, err := p.Produce(context.Background(), "a@b.com", "jane@acme.com", testRequest())
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if gen.calls != 0 {
		t.Error("disabled generator should never be called")
	}
	if draft.Body != "Hi Jane, wanted to reach out." {
		t.Errorf("body = %q", draft.Body)
	}
}

func TestProduceTemplateDraftStillScreened(t *testing.T) {
	gen := &stubGenerator{enabled: false}
	scr := &stubScreener{verdicts: []Verdict{{IsSpam: true, Score: 12, Report: "reject"}}}
	p := NewPipeline(gen, scr, 3)

	_, _, err := p.Produce(context.Background(), "a@b.com", "jane@acme.com", testRequest())
	if !errors.Is(err, ErrScreenedOut) {
		t.Errorf("error = %v, want ErrScreenedOut for flagged template", err)
	}
	if scr.calls != 1 {
		t.Errorf("screener calls = %d, want 1", scr.calls)
	}
}
