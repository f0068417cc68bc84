package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewTrackingID returns a fresh opaque tracking token.
func NewTrackingID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// SignToken derives the HMAC token that authorizes an unsubscribe link
// for a lead without a session.
func SignToken(signingKey string, leadID string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(leadID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyToken checks an unsubscribe token in constant time.
func VerifyToken(signingKey, leadID, token string) bool {
	return hmac.Equal([]byte(SignToken(signingKey, leadID)), []byte(token))
}

// Embedder assembles the tracking elements appended to every outgoing
// message body.
type Embedder struct {
	baseURL    string
	signingKey string
}

// NewEmbedder creates an embedder. baseURL is the externally reachable
// root of the tracking endpoints, without a trailing slash.
func NewEmbedder(baseURL, signingKey string) *Embedder {
	return &Embedder{baseURL: strings.TrimRight(baseURL, "/"), signingKey: signingKey}
}

// WrapHTML converts a plain-text body to HTML and appends the full set
// of tracking elements: three pixels loaded through different paths, a
// hidden interactive link, a delayed JavaScript ping, a view-in-browser
// link, and the unsubscribe footer. Clients that block one vector still
// trip the others.
func (e *Embedder) WrapHTML(body, trackingID string, leadID string) string {
	var b strings.Builder

	b.WriteString("<html><body>\n")
	for _, line := range strings.Split(body, "\n") {
		fmt.Fprintf(&b, "<p>%s</p>\n", line)
	}

	suffix := trackingID
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}

	// Primary pixel, loads immediately
	fmt.Fprintf(&b, `<img src="%s/track/signal/%s/primary" width="1" height="1" style="opacity:0;max-height:0;overflow:hidden;" alt="">`+"\n",
		e.baseURL, trackingID)

	// Secondary pixel via CSS background, survives img blocking
	fmt.Fprintf(&b, `<style>.trk-%s{background-image:url('%s/track/signal/%s/secondary');width:0px;height:0px;opacity:0;}</style><div class="trk-%s"></div>`+"\n",
		suffix, e.baseURL, trackingID, suffix)

	// Content pixel positioned offscreen
	fmt.Fprintf(&b, `<img src="%s/track/signal/%s/content" width="1" height="1" style="display:block;visibility:hidden;position:absolute;top:-1px;" alt="">`+"\n",
		e.baseURL, trackingID)

	// Hidden interactive link
	fmt.Fprintf(&b, `<a href="%s/track/click/%s" style="color:#f8f9fa;font-size:1px;text-decoration:none;display:block;height:1px;overflow:hidden;">.</a>`+"\n",
		e.baseURL, trackingID)

	// Delayed JS ping for clients that execute script
	fmt.Fprintf(&b, `<script type="text/javascript">(function(){setTimeout(function(){var img=new Image();img.src='%s/track/signal/%s/js?t='+Date.now();},1000);})();</script>`+"\n",
		e.baseURL, trackingID)

	fmt.Fprintf(&b, `<p style="font-size:11px;color:#999;">`+
		`<a href="%s/track/view/%s">View in browser</a> | `+
		`<a href="%s/unsubscribe/%s?token=%s">Unsubscribe</a></p>`+"\n",
		e.baseURL, trackingID, e.baseURL, leadID, SignToken(e.signingKey, leadID))

	b.WriteString("</body></html>")
	return b.String()
}
