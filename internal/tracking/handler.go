package tracking

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/store"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// validSignalTypes maps URL path segments to canonical signal types.
// The delayed script ping uses the short "js" segment.
var validSignalTypes = map[string]string{
	"primary":      SignalPrimary,
	"secondary":    SignalSecondary,
	"content":      SignalContent,
	"interactive":  SignalInteractive,
	"js":           SignalJavascript,
	"javascript":   SignalJavascript,
	"view_browser": SignalViewBrowser,
}

// Handler serves the public tracking endpoints. None of them require
// authentication; they are reached from recipients' mail clients.
type Handler struct {
	recorder   *Recorder
	store      *store.Store
	signingKey string
}

// NewHandler creates the tracking HTTP handler.
func NewHandler(recorder *Recorder, st *store.Store, signingKey string) *Handler {
	return &Handler{recorder: recorder, store: st, signingKey: signingKey}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/track/signal/{trackingID}/{signalType}", h.handleSignal)
	r.Get("/track/click/{trackingID}", h.handleClick)
	r.Get("/track/view/{trackingID}", h.handleView)
	r.Get("/unsubscribe/{leadID}", h.handleUnsubscribe)
}

// handleSignal records a pixel or script signal. The pixel is served no
// matter what happens during recording so a storage hiccup never shows
// a broken image in the recipient's client.
func (h *Handler) handleSignal(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")
	signalType, ok := validSignalTypes[chi.URLParam(r, "signalType")]
	if ok {
		if err := h.recorder.Record(r.Context(), trackingID, signalType,
			r.UserAgent(), clientIP(r), r.Referer()); err != nil {
			logger.Warn("signal record failed", "tracking_id", trackingID, "error", err.Error())
		}
	}
	servePixel(w)
}

// handleClick records an interactive signal, counts the click, and
// redirects to the wrapped destination or the browser view.
func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")

	if err := h.recorder.Record(r.Context(), trackingID, SignalInteractive,
		r.UserAgent(), clientIP(r), r.Referer()); err != nil {
		logger.Warn("click record failed", "tracking_id", trackingID, "error", err.Error())
	}
	if err := h.store.RecordClick(r.Context(), trackingID, time.Now()); err != nil {
		logger.Warn("click count failed", "tracking_id", trackingID, "error", err.Error())
	}

	if dest := r.URL.Query().Get("url"); dest != "" {
		if parsed, err := url.Parse(dest); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
			http.Redirect(w, r, dest, http.StatusFound)
			return
		}
	}
	http.Redirect(w, r, "/track/view/"+trackingID, http.StatusFound)
}

// handleView records the strongest signal type and renders the message
// in the browser.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")

	if err := h.recorder.Record(r.Context(), trackingID, SignalViewBrowser,
		r.UserAgent(), clientIP(r), r.Referer()); err != nil {
		logger.Warn("view record failed", "tracking_id", trackingID, "error", err.Error())
	}

	msg, err := h.recorder.MessageForToken(r.Context(), trackingID)
	if err != nil || msg == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	subject := html.EscapeString(msg.Subject)
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h3>%s</h3><div>", subject, subject)
	for _, line := range strings.Split(msg.Content, "\n") {
		fmt.Fprintf(w, "<p>%s</p>", html.EscapeString(line))
	}
	fmt.Fprint(w, "</div></body></html>")
}

// handleUnsubscribe honors a signed one-click unsubscribe link.
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	leadIDParam := chi.URLParam(r, "leadID")
	token := r.URL.Query().Get("token")

	leadID, err := uuid.Parse(leadIDParam)
	if err != nil || !VerifyToken(h.signingKey, leadIDParam, token) {
		http.Error(w, "invalid unsubscribe link", http.StatusBadRequest)
		return
	}

	if err := h.store.UnsubscribeLead(r.Context(), leadID); err != nil {
		logger.Error("unsubscribe failed", "lead_id", leadIDParam, "error", err.Error())
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h3>You have been unsubscribed.</h3><p>You will not receive further emails from us.</p></body></html>")
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
