// Package tracking records engagement signals from embedded tracking
// elements and classifies them as human or automated.
package tracking

import (
	"strings"
	"time"
)

// Signal types emitted by the embedded tracking elements.
const (
	SignalPrimary     = "primary"
	SignalSecondary   = "secondary"
	SignalContent     = "content"
	SignalInteractive = "interactive"
	SignalJavascript  = "javascript"
	SignalViewBrowser = "view_browser"
)

// prefetchUserAgents are patterns mail providers present when they
// fetch images on the recipient's behalf before any human looks at
// the message.
var prefetchUserAgents = []string{
	"applewebkit/605.1.15", // Apple Mail Privacy Protection
	"mozilla/5.0 (iphone; cpu iphone os",
	"mozilla/5.0 (macintosh; intel mac os x",
	"outlook",
	"mailkit",
}

var automationIndicators = []string{"bot", "crawler", "spider", "automated", "headless"}

var realUserIndicators = []string{"chrome", "firefox", "safari", "edge", "opera"}

// prefetchWindow is the interval after send inside which a fetch is
// assumed to be a provider prefetch, not a human.
const prefetchWindow = 2 * time.Second

// AnalyzeUserAgent classifies a User-Agent header. It returns whether
// the agent looks like a prefetcher and a confidence that a human is
// behind it.
func AnalyzeUserAgent(userAgent string) (isPrefetch bool, confidence float64) {
	if userAgent == "" {
		return true, 0.3
	}

	ua := strings.ToLower(userAgent)

	for _, pattern := range prefetchUserAgents {
		if strings.Contains(ua, pattern) {
			return true, 0.1
		}
	}
	for _, indicator := range automationIndicators {
		if strings.Contains(ua, indicator) {
			return true, 0.0
		}
	}
	for _, indicator := range realUserIndicators {
		if strings.Contains(ua, indicator) {
			return false, 0.8
		}
	}
	return false, 0.5
}

// AnalyzeTiming classifies the delay between send and signal arrival.
// Sub-2-second fetches are provider prefetches; fetches within the
// first hour are the strongest human indicator.
func AnalyzeTiming(sentAt, signalAt time.Time) (isPrefetch bool, confidence float64) {
	return AnalyzeDelay(signalAt.Sub(sentAt))
}

// AnalyzeDelay is AnalyzeTiming over an already-computed delay.
func AnalyzeDelay(delay time.Duration) (isPrefetch bool, confidence float64) {
	if delay < prefetchWindow {
		return true, 0.1
	}
	if delay < 10*time.Second {
		return false, 0.4
	}
	if delay < time.Hour {
		return false, 0.9
	}
	return false, 0.7
}

// SignalConfidence combines the user-agent and timing reads into one
// per-signal confidence. Either prefetch indicator collapses the base
// toward zero; both factor multiplicatively after that.
func SignalConfidence(userAgent string, sentAt, signalAt time.Time) (confidence float64, isPrefetch bool) {
	uaPrefetch, uaConfidence := AnalyzeUserAgent(userAgent)
	timingPrefetch, timingConfidence := AnalyzeTiming(sentAt, signalAt)

	base := 0.8
	if uaPrefetch || timingPrefetch {
		base = 0.2
	}
	return base * uaConfidence * timingConfidence, uaPrefetch || timingPrefetch
}
