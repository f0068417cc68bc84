package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/pkg/httpretry"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// Verdict is one screening result. A zero Score with IsSpam false is
// also what an unreachable screener produces: screening failures never
// block dispatch.
type Verdict struct {
	IsSpam      bool
	Score       float64
	Action      string
	Report      string
	Suggestions []string
}

// Screener scores drafts against an Rspamd instance before dispatch.
type Screener struct {
	baseURL     string
	rejectScore float64
	enabled     bool
	client      *httpretry.RetryClient
}

// NewScreener creates a screener from config.
func NewScreener(cfg config.ScreenerConfig) *Screener {
	return &Screener{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rejectScore: cfg.RejectScore,
		enabled:     cfg.Enabled,
		client: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 1),
	}
}

type rspamdSymbol struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

type rspamdResult struct {
	Action        string                  `json:"action"`
	Score         float64                 `json:"score"`
	RequiredScore float64                 `json:"required_score"`
	Symbols       map[string]rspamdSymbol `json:"symbols"`
}

// Screen scans a draft and reports whether it should be regenerated.
// Any transport or decode failure returns a clean verdict so an
// unreachable scanner degrades to sending unscreened.
func (s *Screener) Screen(ctx context.Context, from, to string, draft Draft) Verdict {
	if !s.enabled {
		return Verdict{Report: "screening disabled"}
	}

	raw := buildRawMessage(from, to, draft)

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/scan", bytes.NewReader(raw))
	if err != nil {
		return Verdict{Report: fmt.Sprintf("screen request: %v", err)}
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn("screener unreachable, passing unscreened", "error", err.Error())
		return Verdict{Report: fmt.Sprintf("screener unreachable: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		logger.Warn("screener returned non-200, passing unscreened", "status", resp.StatusCode)
		return Verdict{Report: fmt.Sprintf("screener status %d", resp.StatusCode)}
	}

	result, err := decodeScanResponse(body)
	if err != nil {
		logger.Warn("screener response undecodable, passing unscreened", "error", err.Error())
		return Verdict{Report: fmt.Sprintf("screener decode: %v", err)}
	}

	v := Verdict{
		Score:  result.Score,
		Action: result.Action,
		Report: fmt.Sprintf("action=%s score=%.2f required=%.2f", result.Action, result.Score, result.RequiredScore),
	}
	action := strings.ToLower(result.Action)
	v.IsSpam = action == "reject" || action == "soft reject" || result.Score >= s.rejectScore
	if v.IsSpam {
		v.Suggestions = suggestionsFor(result)
	}
	return v
}

// decodeScanResponse handles both response shapes rspamd emits: the
// flat result and the result keyed under "default".
func decodeScanResponse(body []byte) (*rspamdResult, error) {
	var flat rspamdResult
	if err := json.Unmarshal(body, &flat); err == nil && flat.Action != "" {
		return &flat, nil
	}

	var keyed struct {
		Default rspamdResult `json:"default"`
	}
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, err
	}
	if keyed.Default.Action == "" {
		return nil, fmt.Errorf("no action in response")
	}
	return &keyed.Default, nil
}

// buildRawMessage assembles the RFC-822 text rspamd scans.
func buildRawMessage(from, to string, draft Draft) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", draft.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@outreach>\r\n", uuid.New().String())
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(draft.Body)
	return b.Bytes()
}

// suggestionsFor maps fired rule symbols to actionable rewrite hints.
func suggestionsFor(result *rspamdResult) []string {
	hints := map[string]string{
		"SUBJ_ALL_CAPS":        "avoid all-caps words in the subject line",
		"SUBJECT_NEEDS_ENCODING": "remove unusual characters from the subject",
		"MANY_INVISIBLE_PARTS": "remove hidden or zero-width text",
		"MIME_HTML_ONLY":       "include a plain-text body",
		"URI_COUNT_ODD":        "reduce the number of links",
		"FREEMAIL_FROM":        "send from a business domain, not a free mailbox",
		"R_UNDISC_RCPT":        "address the recipient directly",
		"MISSING_SUBJECT":      "add a subject line",
		"SPAM_PHRASES":         "remove salesy phrases like 'act now' or 'limited time'",
		"MONEY_PHRASES":        "drop pricing and money language from the first touch",
	}

	var out []string
	for name, sym := range result.Symbols {
		if sym.Score <= 0 {
			continue
		}
		if hint, ok := hints[name]; ok {
			out = append(out, hint)
		} else if sym.Description != "" {
			out = append(out, fmt.Sprintf("triggered %s: %s", name, sym.Description))
		}
	}
	if len(out) == 0 {
		out = append(out, fmt.Sprintf("spam score %.1f too high, write shorter, plainer, more personal copy", result.Score))
	}
	return out
}
