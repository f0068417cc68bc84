package tracking

import (
	"testing"
	"time"
)

func TestAnalyzeUserAgent(t *testing.T) {
	tests := []struct {
		name           string
		userAgent      string
		wantPrefetch   bool
		wantConfidence float64
	}{
		{"empty suspicious but possible", "", true, 0.3},
		{"apple mail privacy protection", "Mozilla/5.0 AppleWebKit/605.1.15 (KHTML, like Gecko)", true, 0.1},
		{"outlook prefetch", "Microsoft Office Outlook 16.0", true, 0.1},
		{"googlebot", "Googlebot/2.1 (+http://www.google.com/bot.html)", true, 0.0},
		{"headless browser", "HeadlessChrome/119.0", true, 0.0},
		{"crawler", "some-crawler/1.0", true, 0.0},
		{"chrome desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0", false, 0.8},
		{"firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", false, 0.8},
		{"unknown client", "SomeNicheMailReader/3.2", false, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPrefetch, gotConfidence := AnalyzeUserAgent(tt.userAgent)
			if gotPrefetch != tt.wantPrefetch || gotConfidence != tt.wantConfidence {
				t.Errorf("AnalyzeUserAgent(%q) = (%v, %v), want (%v, %v)",
					tt.userAgent, gotPrefetch, gotConfidence, tt.wantPrefetch, tt.wantConfidence)
			}
		})
	}
}

func TestAnalyzeTiming(t *testing.T) {
	sent := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		delay          time.Duration
		wantPrefetch   bool
		wantConfidence float64
	}{
		{"instant fetch is prefetch", 500 * time.Millisecond, true, 0.1},
		{"just under the prefetch window", 1999 * time.Millisecond, true, 0.1},
		{"fast but plausible", 5 * time.Second, false, 0.4},
		{"normal human timing", 10 * time.Minute, false, 0.9},
		{"just under an hour", 59 * time.Minute, false, 0.9},
		{"delayed but valid", 4 * time.Hour, false, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPrefetch, gotConfidence := AnalyzeTiming(sent, sent.Add(tt.delay))
			if gotPrefetch != tt.wantPrefetch || gotConfidence != tt.wantConfidence {
				t.Errorf("AnalyzeTiming(+%v) = (%v, %v), want (%v, %v)",
					tt.delay, gotPrefetch, gotConfidence, tt.wantPrefetch, tt.wantConfidence)
			}
		})
	}
}

func TestSignalConfidence(t *testing.T) {
	sent := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	chrome := "Mozilla/5.0 Chrome/120.0.0.0"

	// Clean browser, human timing: 0.8 * 0.8 * 0.9
	conf, prefetch := SignalConfidence(chrome, sent, sent.Add(10*time.Minute))
	if prefetch {
		t.Error("chrome at 10 minutes should not be prefetch")
	}
	if diff := conf - 0.576; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want 0.576", conf)
	}

	// Same browser, instant fetch: prefetch base 0.2 * 0.8 * 0.1
	conf, prefetch = SignalConfidence(chrome, sent, sent.Add(time.Second))
	if !prefetch {
		t.Error("instant fetch should be prefetch")
	}
	if diff := conf - 0.016; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want 0.016", conf)
	}

	// Automated UA zeroes confidence regardless of timing
	conf, prefetch = SignalConfidence("spider/1.0", sent, sent.Add(10*time.Minute))
	if !prefetch || conf != 0.0 {
		t.Errorf("automated UA = (%v, %v), want (0.0, true)", conf, prefetch)
	}
}
