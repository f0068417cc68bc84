package tracking

import (
	"strings"
	"testing"
)

func TestNewTrackingID(t *testing.T) {
	id := NewTrackingID()
	if len(id) != 32 {
		t.Errorf("tracking id length = %d, want 32", len(id))
	}
	if strings.Contains(id, "-") {
		t.Error("tracking id should not contain dashes")
	}
	if id == NewTrackingID() {
		t.Error("tracking ids must be unique")
	}
}

func TestSignAndVerifyToken(t *testing.T) {
	token := SignToken("secret", "lead-123")
	if !VerifyToken("secret", "lead-123", token) {
		t.Error("valid token rejected")
	}
	if VerifyToken("secret", "lead-456", token) {
		t.Error("token accepted for the wrong lead")
	}
	if VerifyToken("other-key", "lead-123", token) {
		t.Error("token accepted with the wrong key")
	}
}

func TestWrapHTMLEmitsAllSignalVectors(t *testing.T) {
	e := NewEmbedder("https://track.example.com", "secret")
	trackingID := "abcdef0123456789abcdef0123456789"
	leadID := "d2b0e6a0-0000-0000-0000-000000000001"

	html := e.WrapHTML("Hi Jane,\nShort note.", trackingID, leadID)

	wants := []string{
		"/track/signal/" + trackingID + "/primary",
		"/track/signal/" + trackingID + "/secondary",
		"/track/signal/" + trackingID + "/content",
		"/track/click/" + trackingID,
		"/track/signal/" + trackingID + "/js?t=",
		"/track/view/" + trackingID,
		"/unsubscribe/" + leadID + "?token=" + SignToken("secret", leadID),
		"background-image",
		"setTimeout",
		"<p>Hi Jane,</p>",
	}
	for _, want := range wants {
		if !strings.Contains(html, want) {
			t.Errorf("wrapped HTML missing %q", want)
		}
	}

	// CSS class carries the token suffix so two messages in one inbox
	// never collide.
	if !strings.Contains(html, "trk-"+trackingID[len(trackingID)-8:]) {
		t.Error("secondary pixel class should embed the token suffix")
	}
}
