package content

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/outreach-engine/internal/store"
)

var liquidEngine = liquid.NewEngine()

// TemplateVars builds the liquid binding for a lead and sender pair.
func TemplateVars(lead *store.Lead, profile *store.SendingProfile) map[string]interface{} {
	vars := map[string]interface{}{
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"email":      lead.Email,
		"company":    lead.Company,
		"title":      lead.Title,
	}
	if profile != nil {
		vars["sender_name"] = profile.SenderName
		vars["sender_title"] = profile.SenderTitle
		vars["sender_company"] = profile.SenderCompany
		vars["sender_email"] = profile.SenderEmail
		vars["signature"] = profile.Signature
	}
	return vars
}

// RenderTemplate renders a liquid template against the lead binding.
// Unknown variables render empty rather than failing the send.
func RenderTemplate(tpl string, vars map[string]interface{}) (string, error) {
	out, err := liquidEngine.ParseAndRenderString(tpl, vars)
	if err != nil {
		return "", fmt.Errorf("template render: %w", err)
	}
	return out, nil
}

// FallbackDraft renders the step's static subject and template when
// generation is unavailable or produced nothing usable.
func FallbackDraft(step *store.Step, lead *store.Lead, profile *store.SendingProfile) (Draft, error) {
	vars := TemplateVars(lead, profile)

	subject, err := RenderTemplate(step.Subject, vars)
	if err != nil {
		return Draft{}, err
	}
	body, err := RenderTemplate(step.Template, vars)
	if err != nil {
		return Draft{}, err
	}

	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" {
		subject = fmt.Sprintf("Following up with %s", lead.FirstName)
	}
	if body == "" {
		return Draft{}, fmt.Errorf("step %d has no usable template", step.StepNumber)
	}
	return Draft{Subject: subject, Body: body, Source: SourceTemplate}, nil
}
