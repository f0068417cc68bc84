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

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/pkg/httpretry"
	"github.com/ignite/outreach-engine/internal/store"
)

// Draft sources
const (
	SourceGenerated = "generated"
	SourceTemplate  = "template"
)

// Draft is one candidate email produced for a step.
type Draft struct {
	Subject string
	Body    string
	Source  string
}

// GenerateRequest carries everything a single generation attempt may
// read. Attempts never mutate it; retries derive a new request with
// extra feedback instead.
type GenerateRequest struct {
	Lead     *store.Lead
	Profile  *store.SendingProfile
	Step     *store.Step
	Prior    []store.PriorMessage
	Feedback []string
}

// WithFeedback returns a copy of the request with screening feedback
// appended for the next attempt.
func (r GenerateRequest) WithFeedback(feedback []string) GenerateRequest {
	next := r
	next.Feedback = append(append([]string{}, r.Feedback...), feedback...)
	return next
}

// Generator produces personalized email drafts from step prompts using
// Anthropic or OpenAI, falling back between providers the way the
// configured keys allow.
type Generator struct {
	anthropicKey string
	openaiKey    string
	model        string
	maxTokens    int
	client       *httpretry.RetryClient
}

// NewGenerator creates a draft generator from config.
func NewGenerator(cfg config.GeneratorConfig) *Generator {
	return &Generator{
		anthropicKey: cfg.AnthropicKey,
		openaiKey:    cfg.OpenAIKey,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		client: httpretry.NewRetryClient(&http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, 2),
	}
}

// Enabled reports whether any provider key is configured.
func (g *Generator) Enabled() bool {
	return g.anthropicKey != "" || g.openaiKey != ""
}

// Generate produces one draft for the request. The raw model output is
// expected to open with a "SUBJECT:" line; output without the marker
// degrades to first-line-as-subject rather than failing the attempt.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (Draft, error) {
	if !g.Enabled() {
		return Draft{}, fmt.Errorf("no generation provider configured")
	}

	prompt := g.buildPrompt(req)

	var raw string
	var err error
	if g.anthropicKey != "" {
		raw, err = g.callAnthropic(ctx, prompt)
		if err != nil && g.openaiKey != "" {
			raw, err = g.callOpenAI(ctx, prompt)
		}
	} else {
		raw, err = g.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return Draft{}, err
	}

	draft, ok := ParseDraft(raw)
	if !ok {
		return Draft{}, fmt.Errorf("generator returned no usable content")
	}
	return draft, nil
}

// ParseDraft splits raw model output into subject and body. The
// "SUBJECT:" marker wins; otherwise the first non-empty line becomes
// the subject and the rest the body.
func ParseDraft(raw string) (Draft, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Draft{}, false
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "SUBJECT:") {
			subject := strings.TrimSpace(trimmed[len("SUBJECT:"):])
			body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			if subject == "" || body == "" {
				break
			}
			return Draft{Subject: subject, Body: body, Source: SourceGenerated}, true
		}
		if trimmed != "" {
			break
		}
	}

	// No marker: first non-empty line is the subject
	var subject string
	var bodyStart int
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			subject = strings.TrimSpace(line)
			bodyStart = i + 1
			break
		}
	}
	body := strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	if subject == "" || body == "" {
		return Draft{}, false
	}
	if len(subject) > 200 {
		subject = subject[:200]
	}
	return Draft{Subject: subject, Body: body, Source: SourceGenerated}, true
}

func (g *Generator) buildPrompt(req GenerateRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a short outreach email for step %d of a sequence.\n\n", req.Step.StepNumber)
	fmt.Fprintf(&b, "Recipient: %s %s, %s at %s (%s)\n",
		req.Lead.FirstName, req.Lead.LastName, req.Lead.Title, req.Lead.Company, req.Lead.Email)
	if req.Profile != nil {
		fmt.Fprintf(&b, "Sender: %s, %s at %s\n",
			req.Profile.SenderName, req.Profile.SenderTitle, req.Profile.SenderCompany)
	}
	fmt.Fprintf(&b, "\nInstructions:\n%s\n", req.Step.Prompt)

	if req.Step.IncludePrior && len(req.Prior) > 0 {
		b.WriteString("\nEarlier emails already sent in this thread (do not repeat them, build on them):\n")
		for i, pm := range req.Prior {
			fmt.Fprintf(&b, "--- Email %d ---\nSubject: %s\n%s\n", i+1, pm.Subject, pm.Content)
		}
	}

	if len(req.Feedback) > 0 {
		b.WriteString("\nA previous draft was rejected by a spam screener. Address this feedback:\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	b.WriteString("\nRespond with the subject on the first line prefixed with \"SUBJECT:\" followed by a blank line and the plain-text email body. No commentary.")
	return b.String()
}

func (g *Generator) callAnthropic(ctx context.Context, prompt string) (string, error) {
	model := g.model
	if !strings.HasPrefix(model, "claude") {
		model = "claude-sonnet-4-20250514"
	}
	reqBody := map[string]interface{}{
		"model":      model,
		"max_tokens": g.maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("x-api-key", g.anthropicKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("Anthropic error: %s", string(respBody))
	}

	var anthropicResp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return "", err
	}
	if len(anthropicResp.Content) == 0 {
		return "", fmt.Errorf("no content")
	}
	return anthropicResp.Content[0].Text, nil
}

func (g *Generator) callOpenAI(ctx context.Context, prompt string) (string, error) {
	model := g.model
	if strings.HasPrefix(model, "claude") {
		model = "gpt-4o"
	}
	reqBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": g.maxTokens,
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+g.openaiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("OpenAI error: %s", string(respBody))
	}

	var openAIResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", err
	}
	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	return openAIResp.Choices[0].Message.Content, nil
}
