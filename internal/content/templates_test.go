package content

import (
	"testing"

	"github.com/ignite/outreach-engine/internal/store"
)

func TestFallbackDraftRendersVariables(t *testing.T) {
	step := &store.Step{
		StepNumber: 2,
		Subject:    "{{ first_name }}, quick follow-up",
		Template:   "Hi {{ first_name }},\n\nStill curious how {{ company }} handles this.\n\n{{ signature }}",
	}
	lead := &store.Lead{FirstName: "Jane", Company: "Acme"}
	profile := &store.SendingProfile{SenderName: "Alex", Signature: "Alex from Ignite"}

	draft, err := FallbackDraft(step, lead, profile)
	if err != nil {
		t.Fatalf("FallbackDraft() error = %v", err)
	}
	if draft.Subject != "Jane, quick follow-up" {
		t.Errorf("subject = %q", draft.Subject)
	}
	if want := "Hi Jane,\n\nStill curious how Acme handles this.\n\nAlex from Ignite"; draft.Body != want {
		t.Errorf("body = %q, want %q", draft.Body, want)
	}
	if draft.Source != SourceTemplate {
		t.Errorf("source = %q", draft.Source)
	}
}

func TestFallbackDraftEmptySubjectGetsDefault(t *testing.T) {
	step := &store.Step{StepNumber: 1, Template: "Hi {{ first_name }}"}
	draft, err := FallbackDraft(step, &store.Lead{FirstName: "Jane"}, nil)
	if err != nil {
		t.Fatalf("FallbackDraft() error = %v", err)
	}
	if draft.Subject == "" {
		t.Error("empty step subject should produce a default")
	}
}

func TestFallbackDraftEmptyTemplateFails(t *testing.T) {
	step := &store.Step{StepNumber: 1, Subject: "hi"}
	if _, err := FallbackDraft(step, &store.Lead{FirstName: "Jane"}, nil); err == nil {
		t.Error("step with no template should fail rather than send an empty body")
	}
}
