package content

import (
	"strings"
	"testing"
)

func TestParseDraftWithMarker(t *testing.T) {
	raw := "SUBJECT: Quick question about Acme\n\nHi Jane,\n\nSaw your team is growing.\n\nBest,\nAlex"

	draft, ok := ParseDraft(raw)
	if !ok {
		t.Fatal("expected a usable draft")
	}
	if draft.Subject != "Quick question about Acme" {
		t.Errorf("subject = %q", draft.Subject)
	}
	if !strings.HasPrefix(draft.Body, "Hi Jane,") {
		t.Errorf("body should start after the marker line, got %q", draft.Body)
	}
	if draft.Source != SourceGenerated {
		t.Errorf("source = %q", draft.Source)
	}
}

func TestParseDraftMarkerCaseInsensitive(t *testing.T) {
	draft, ok := ParseDraft("subject: hello there\n\nbody text")
	if !ok {
		t.Fatal("expected a usable draft")
	}
	if draft.Subject != "hello there" {
		t.Errorf("subject = %q", draft.Subject)
	}
}

func TestParseDraftNoMarkerUsesFirstLine(t *testing.T) {
	draft, ok := ParseDraft("Following up on my last note\n\nJust checking in.\nAlex")
	if !ok {
		t.Fatal("expected a usable draft")
	}
	if draft.Subject != "Following up on my last note" {
		t.Errorf("subject = %q", draft.Subject)
	}
	if !strings.Contains(draft.Body, "Just checking in.") {
		t.Errorf("body = %q", draft.Body)
	}
}

func TestParseDraftUnusableOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\n  "},
		{"single line has no body", "just one line"},
		{"marker with empty body", "SUBJECT: hi\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseDraft(tt.raw); ok {
				t.Errorf("ParseDraft(%q) should not produce a draft", tt.raw)
			}
		})
	}
}

func TestParseDraftTruncatesLongFirstLine(t *testing.T) {
	long := strings.Repeat("x", 300)
	draft, ok := ParseDraft(long + "\nbody")
	if !ok {
		t.Fatal("expected a usable draft")
	}
	if len(draft.Subject) != 200 {
		t.Errorf("subject length = %d, want 200", len(draft.Subject))
	}
}

func TestGenerateRequestWithFeedbackDoesNotMutate(t *testing.T) {
	base := GenerateRequest{Feedback: []string{"first"}}
	next := base.WithFeedback([]string{"second"})

	if len(base.Feedback) != 1 {
		t.Errorf("base request mutated: %v", base.Feedback)
	}
	if len(next.Feedback) != 2 || next.Feedback[1] != "second" {
		t.Errorf("derived request feedback = %v", next.Feedback)
	}

	next.Feedback[0] = "changed"
	if base.Feedback[0] != "first" {
		t.Error("derived request shares backing array with base")
	}
}
