package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notification bodies from embedded templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"upper":      strings.ToUpper,
		"formatTime": formatTime,
	}

	r := &Renderer{templates: make(map[string]*template.Template)}

	for _, name := range []string{"email_alert", "email_resolved"} {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}
		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// alertData is the payload of the alert template.
type alertData struct {
	Severity domain.IncidentSeverity
	Failures []FailedCheck
	Now      time.Time
}

// RenderAlert renders the alert notification for a group of failures.
func (r *Renderer) RenderAlert(failures []FailedCheck, severity domain.IncidentSeverity) (subject, body string, err error) {
	if len(failures) == 1 {
		subject = fmt.Sprintf("[Alert] %s is unhealthy", failures[0].Check.Name)
	} else {
		subject = fmt.Sprintf("[Alert] %d checks are unhealthy", len(failures))
	}

	body, err = r.render("email_alert", alertData{
		Severity: severity,
		Failures: failures,
		Now:      time.Now(),
	})
	return subject, body, err
}

// RenderResolved renders the resolution notification for an incident.
func (r *Renderer) RenderResolved(incident *domain.Incident) (subject, body string, err error) {
	subject = fmt.Sprintf("[Resolved] %s", incident.Title)
	body, err = r.render("email_resolved", incident)
	return subject, body, err
}

func (r *Renderer) render(name string, data interface{}) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
