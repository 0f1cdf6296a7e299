package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"kwikflow/internal/repo"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Template names used for metrics labels.
const (
	TemplateConsultationNotify  = "consultation_notify"
	TemplateConsultationConfirm = "consultation_confirm"
	TemplateLeadNotify          = "lead_notify"
	TemplateLeadConfirm         = "lead_confirm"
)

const dateLayout = "2 Jan 2006 15:04 MST"

type consultationView struct {
	FullName, Email, Company, Phone, Systems, Message string
	Date, Contact                                     string
}

type leadView struct {
	ContactName, Email, CompanyName, Phone, Role string
	Message, PreferredPlan                       string
	Features                                     []string
	Date, Contact                                string
}

// Composer renders the notification and confirmation e-mails.
type Composer struct {
	// NotifyTo is the business inbox that receives notifications.
	NotifyTo string
	Location *time.Location
}

// ConsultationNotification is sent to the business inbox; replies go to the customer.
func (c Composer) ConsultationNotification(req repo.ConsultationRequest) (Message, error) {
	html, err := render(TemplateConsultationNotify, c.consultationView(req))
	if err != nil {
		return Message{}, err
	}
	return Message{
		Template: TemplateConsultationNotify,
		To:       c.NotifyTo,
		Subject:  "New Consultation Request from " + req.FullName,
		HTML:     html,
		ReplyTo:  req.Email,
	}, nil
}

// ConsultationConfirmation thanks the customer.
func (c Composer) ConsultationConfirmation(req repo.ConsultationRequest) (Message, error) {
	html, err := render(TemplateConsultationConfirm, c.consultationView(req))
	if err != nil {
		return Message{}, err
	}
	return Message{
		Template: TemplateConsultationConfirm,
		To:       req.Email,
		Subject:  "Thank You for Your Consultation Request",
		HTML:     html,
	}, nil
}

// LeadNotification is sent to the business inbox; replies go to the lead.
func (c Composer) LeadNotification(lead repo.Lead) (Message, error) {
	html, err := render(TemplateLeadNotify, c.leadView(lead))
	if err != nil {
		return Message{}, err
	}
	who := lead.Email
	if lead.ContactName != nil && *lead.ContactName != "" {
		who = *lead.ContactName
	}
	return Message{
		Template: TemplateLeadNotify,
		To:       c.NotifyTo,
		Subject:  "New Lead from " + who,
		HTML:     html,
		ReplyTo:  lead.Email,
	}, nil
}

// LeadConfirmation thanks the lead.
func (c Composer) LeadConfirmation(lead repo.Lead) (Message, error) {
	html, err := render(TemplateLeadConfirm, c.leadView(lead))
	if err != nil {
		return Message{}, err
	}
	return Message{
		Template: TemplateLeadConfirm,
		To:       lead.Email,
		Subject:  "Thanks for Your Interest in KwikFlow",
		HTML:     html,
	}, nil
}

func (c Composer) consultationView(req repo.ConsultationRequest) consultationView {
	return consultationView{
		FullName: req.FullName,
		Email:    req.Email,
		Company:  deref(req.Company),
		Phone:    deref(req.Phone),
		Systems:  deref(req.Systems),
		Message:  req.Message,
		Date:     c.date(req.CreatedAt),
		Contact:  c.NotifyTo,
	}
}

func (c Composer) leadView(lead repo.Lead) leadView {
	var features []string
	for _, f := range strings.Split(lead.InterestedFeatures, ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	return leadView{
		ContactName:   deref(lead.ContactName),
		Email:         lead.Email,
		CompanyName:   deref(lead.CompanyName),
		Phone:         deref(lead.Phone),
		Role:          deref(lead.Role),
		Message:       deref(lead.Message),
		PreferredPlan: deref(lead.PreferredPlan),
		Features:      features,
		Date:          c.date(lead.CreatedAt),
		Contact:       c.NotifyTo,
	}
}

func (c Composer) date(t time.Time) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
