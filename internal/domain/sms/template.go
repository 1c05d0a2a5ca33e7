package sms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// TemplateKind names one of the fixed message templates
type TemplateKind string

const (
	KindInvoiceReminder TemplateKind = "invoice_reminder"
	KindEventReminder   TemplateKind = "event_reminder"
	KindAnnouncement    TemplateKind = "announcement"
)

// ComplianceFooter is appended to every message that does not already carry an opt-out line
const ComplianceFooter = "Reply STOP to opt out."

// ErrMissingRequiredField is matched by every MissingRequiredFieldError
var ErrMissingRequiredField = errors.New("missing required field")

// MissingRequiredFieldError lists the merge fields a template request lacks
type MissingRequiredFieldError struct {
	Kind   TemplateKind
	Fields []string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s for %s: %s", ErrMissingRequiredField, e.Kind, strings.Join(e.Fields, ", "))
}

func (e *MissingRequiredFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

// TemplateRequest is one of InvoiceReminderData, EventReminderData or AnnouncementData
type TemplateRequest interface {
	Kind() TemplateKind
	missingFields() []string
}

// InvoiceReminderData is the merge data for invoice_reminder
type InvoiceReminderData struct {
	FamilyName string `json:"family_name"`
	AmountDue  string `json:"amount_due"`
	DueDate    string `json:"due_date"`
	InvoiceURL string `json:"invoice_url,omitempty"`
}

func (InvoiceReminderData) Kind() TemplateKind { return KindInvoiceReminder }

func (d InvoiceReminderData) missingFields() []string {
	return blank("family_name", d.FamilyName, "amount_due", d.AmountDue, "due_date", d.DueDate)
}

// EventReminderData is the merge data for event_reminder
type EventReminderData struct {
	EventName string `json:"event_name"`
	EventDate string `json:"event_date"`
	EventTime string `json:"event_time,omitempty"`
	Location  string `json:"location,omitempty"`
}

func (EventReminderData) Kind() TemplateKind { return KindEventReminder }

func (d EventReminderData) missingFields() []string {
	return blank("event_name", d.EventName, "event_date", d.EventDate)
}

// AnnouncementData is the merge data for announcement
type AnnouncementData struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

func (AnnouncementData) Kind() TemplateKind { return KindAnnouncement }

func (d AnnouncementData) missingFields() []string {
	return blank("message", d.Message)
}

// blank takes name, value pairs and returns the names whose value is empty
func blank(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

// DefaultTemplates are the built-in template bodies, without footer
var DefaultTemplates = map[TemplateKind]string{
	KindInvoiceReminder: "Hi {{.Data.FamilyName}}, this is a reminder from {{.Company}} that your invoice of " +
		"{{.Data.AmountDue}} is due {{.Data.DueDate}}.{{if .Data.InvoiceURL}} View and pay: {{.Data.InvoiceURL}}{{end}}",
	KindEventReminder: "Reminder from {{.Company}}: {{.Data.EventName}} is on {{.Data.EventDate}}" +
		"{{if .Data.EventTime}} at {{.Data.EventTime}}{{end}}{{if .Data.Location}}, {{.Data.Location}}{{end}}.",
	KindAnnouncement: "{{if .Data.Title}}{{.Data.Title}}: {{end}}{{.Data.Message}} - {{.Company}}",
}

// Generator renders template requests into message bodies
type Generator struct {
	Company   string
	Templates map[TemplateKind]string

	// OnRenderError observes template parse or execute failures, which render as ""
	OnRenderError func(kind TemplateKind, err error)
}

// NewGenerator returns a generator using DefaultTemplates with overrides applied.
// Override keys that are not a known kind are ignored.
func NewGenerator(company string, overrides map[string]string) *Generator {
	templates := make(map[TemplateKind]string, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		templates[k] = v
	}
	for k, v := range overrides {
		kind := TemplateKind(k)
		if _, known := DefaultTemplates[kind]; known && v != "" {
			templates[kind] = v
		}
	}
	return &Generator{Company: company, Templates: templates}
}

// Generate validates the required fields and renders the message with the compliance footer
func (g *Generator) Generate(req TemplateRequest) (string, error) {
	if req == nil {
		return "", entity.NewValidationError("kind", "template request is required")
	}
	if missing := req.missingFields(); len(missing) > 0 {
		return "", &MissingRequiredFieldError{Kind: req.Kind(), Fields: missing}
	}

	raw, ok := g.Templates[req.Kind()]
	if !ok {
		return "", entity.NewValidationError("kind", fmt.Sprintf("unknown template %q", req.Kind()))
	}

	tmpl, err := template.New(string(req.Kind())).Option("missingkey=error").Parse(raw)
	if err != nil {
		g.renderFailed(req.Kind(), err)
		return "", nil
	}

	var buf bytes.Buffer
	view := struct {
		Company string
		Data    TemplateRequest
	}{Company: g.Company, Data: req}
	if err := tmpl.Execute(&buf, view); err != nil {
		g.renderFailed(req.Kind(), err)
		return "", nil
	}

	return WithFooter(buf.String()), nil
}

func (g *Generator) renderFailed(kind TemplateKind, err error) {
	if g.OnRenderError != nil {
		g.OnRenderError(kind, err)
	}
}

// WithFooter appends the compliance footer unless body already has an opt-out line
func WithFooter(body string) string {
	body = strings.TrimRight(body, " \n")
	if body == "" || strings.Contains(body, "Reply STOP") {
		return body
	}
	return body + "\n\n" + ComplianceFooter
}

// ParseTemplateRequest decodes the merge data for kind
func ParseTemplateRequest(kind string, data json.RawMessage) (TemplateRequest, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	var (
		req TemplateRequest
		err error
	)
	switch TemplateKind(kind) {
	case KindInvoiceReminder:
		var d InvoiceReminderData
		err = json.Unmarshal(data, &d)
		req = d
	case KindEventReminder:
		var d EventReminderData
		err = json.Unmarshal(data, &d)
		req = d
	case KindAnnouncement:
		var d AnnouncementData
		err = json.Unmarshal(data, &d)
		req = d
	default:
		return nil, entity.NewValidationError("kind", fmt.Sprintf("unknown template %q", kind))
	}

	if err != nil {
		return nil, entity.NewValidationError("data", err.Error())
	}
	return req, nil
}
