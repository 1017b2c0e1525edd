package core

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

// Email kinds. A kind names its templates and is reported to the provider as a category.
const (
	EmailNotification  = "notification"
	EmailPasswordReset = "password_reset"
)

var (
	//go:embed templates/email/*
	emailFS embed.FS

	tmplOnce sync.Once
	tmpls    emailTemplates
	tmplErr  error

	frontendBaseURL string
)

type (
	emailTemplates struct {
		text map[string]*texttmpl.Template
		html map[string]*htmltmpl.Template
	}

	EmailMessage struct {
		To           []mail.Address
		Subject      string
		Kind         string
		ProjectID    string // set when the email is about a project
		TemplateData interface{}

		// set by Render
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages delivers messages in the background. Failures are logged, not returned.
		SendMessages(messages ...*EmailMessage)
	}

	templateContext struct {
		FrontendBaseURL string
		Data            interface{}
	}
)

var notificationSubjects = map[string]string{
	NotificationMessage:         "New message",
	NotificationApprovalRequest: "Approval required",
	NotificationFundStatus:      "Fund update",
	NotificationMilestone:       "Milestone completed",
}

// NewNotificationEmail addresses n to its recipient. The subject carries the kind and urgency.
func NewNotificationEmail(n Notification) *EmailMessage {
	subject := n.Title
	if label, ok := notificationSubjects[n.Kind]; ok && !strings.EqualFold(label, n.Title) {
		subject = label + ": " + n.Title
	}
	if n.Urgent {
		subject = "[Urgent] " + subject
	}
	return &EmailMessage{
		To:           []mail.Address{{Name: n.RecipientName, Address: n.RecipientEmail}},
		Subject:      subject,
		Kind:         EmailNotification,
		ProjectID:    n.ProjectID,
		TemplateData: n,
	}
}

// ParseEmailTemplates parses the embedded email templates once; later calls are no-ops.
func ParseEmailTemplates(conf *Config, logger Logger) {
	frontendBaseURL = conf.FrontendBaseURL
	tmplOnce.Do(loadTemplates)
	if tmplErr != nil {
		logger.Error(fmt.Sprintf("parsing email templates: %v", tmplErr), tmplErr)
	}
}

// Render fills TextContent and HTMLContent from the templates of the message kind.
func (m *EmailMessage) Render() error {
	tmplOnce.Do(loadTemplates)
	if tmplErr != nil {
		return tmplErr
	}

	text, ok := tmpls.text[m.Kind]
	if !ok {
		return errors.Errorf("no %q email template", m.Kind)
	}
	data := templateContext{FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}

	var buf bytes.Buffer
	if err := text.Execute(&buf, data); err != nil {
		return errors.Wrapf(err, "rendering %s text", m.Kind)
	}
	m.TextContent = buf.String()

	if html, ok := tmpls.html[m.Kind]; ok {
		buf.Reset()
		if err := html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s html", m.Kind)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Deliverable reports whether the rendered message has somewhere to go and something to say.
func (m *EmailMessage) Deliverable() bool {
	return len(m.To) > 0 && m.To[0].Address != "" && m.TextContent != ""
}

func loadTemplates() {
	tmpls = emailTemplates{
		text: make(map[string]*texttmpl.Template),
		html: make(map[string]*htmltmpl.Template),
	}

	root := "templates/email"
	fps, err := fs.Glob(emailFS, path.Join(root, "*"))
	if err != nil {
		tmplErr = err
		return
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		kind := strings.TrimSuffix(fname, ext)

		switch ext {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(emailFS, path.Join(root, "_base.txt"), fp)
			if err != nil {
				tmplErr = errors.Wrap(err, fname)
				continue
			}
			tmpls.text[kind] = tmpl.Option("missingkey=error")
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(emailFS, path.Join(root, "_base.gohtml"), fp)
			if err != nil {
				tmplErr = errors.Wrap(err, fname)
				continue
			}
			tmpls.html[kind] = tmpl.Option("missingkey=error")
		}
	}
}
