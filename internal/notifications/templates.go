package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"math"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/charlesng35/authcore/internal/auth"
)

// Rendered is the mail representation of one notification.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	AppName string
	Name    string
	Link    string
	Minutes int
}

type mailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const verifyEmailText = `Hello {{.Name}}!

Thanks for signing up. Please confirm your email address by opening the link below:

{{.Link}}

This link will expire in {{.Minutes}} minutes.

If you did not create an account, you can ignore this message.

Regards,
{{.AppName}}
`

const verifyEmailHTML = `<p>Hello {{.Name}}!</p>
<p>Thanks for signing up. Please confirm your email address by clicking the button below.</p>
<p><a href="{{.Link}}">Verify Email</a></p>
<p>This link will expire in {{.Minutes}} minutes.</p>
<p>If you did not create an account, you can ignore this message.</p>
<p>Regards,<br>{{.AppName}}</p>
`

const resetPasswordText = `Hello {{.Name}}!

You are receiving this email because a password reset was requested for your account.

{{.Link}}

This link will expire in {{.Minutes}} minutes.

If you did not request a password reset, no further action is required. Your password will not change.

Regards,
{{.AppName}}
`

const resetPasswordHTML = `<p>Hello {{.Name}}!</p>
<p>You are receiving this email because a password reset was requested for your account.</p>
<p><a href="{{.Link}}">Reset Password</a></p>
<p>This link will expire in {{.Minutes}} minutes.</p>
<p>If you did not request a password reset, no further action is required. Your password will not change.</p>
<p>Regards,<br>{{.AppName}}</p>
`

// Renderer turns notification kinds into mail bodies with links into the frontend.
type Renderer struct {
	appName     string
	frontendURL string
	now         func() time.Time
	templates   map[auth.NotificationKind]mailTemplate
}

// NewRenderer parses the built-in templates.
func NewRenderer(appName, frontendURL string, clock func() time.Time) (*Renderer, error) {
	if strings.TrimSpace(frontendURL) == "" {
		return nil, fmt.Errorf("notifications: frontend url is required")
	}
	if clock == nil {
		clock = time.Now
	}
	if strings.TrimSpace(appName) == "" {
		appName = "authcore"
	}

	r := &Renderer{
		appName:     appName,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         clock,
		templates:   make(map[auth.NotificationKind]mailTemplate, 2),
	}

	defs := []struct {
		kind    auth.NotificationKind
		subject string
		text    string
		html    string
	}{
		{auth.NotificationVerifyEmail, "Verify your email address", verifyEmailText, verifyEmailHTML},
		{auth.NotificationResetPassword, "Reset your password", resetPasswordText, resetPasswordHTML},
	}
	for _, def := range defs {
		text, err := texttemplate.New(string(def.kind)).Parse(def.text)
		if err != nil {
			return nil, fmt.Errorf("notifications: parse %s text template: %w", def.kind, err)
		}
		html, err := htmltemplate.New(string(def.kind)).Parse(def.html)
		if err != nil {
			return nil, fmt.Errorf("notifications: parse %s html template: %w", def.kind, err)
		}
		r.templates[def.kind] = mailTemplate{subject: def.subject, text: text, html: html}
	}

	return r, nil
}

// Link returns the frontend URL embedded in the mail for kind.
func (r *Renderer) Link(kind auth.NotificationKind, recipient auth.Recipient, token string) (string, error) {
	switch kind {
	case auth.NotificationVerifyEmail:
		return fmt.Sprintf("%s/email/verify?id=%s&hash=%s",
			r.frontendURL, url.QueryEscape(recipient.UserID), url.QueryEscape(token)), nil
	case auth.NotificationResetPassword:
		return fmt.Sprintf("%s/password/reset?token=%s&email=%s",
			r.frontendURL, url.QueryEscape(token), url.QueryEscape(recipient.Email)), nil
	default:
		return "", fmt.Errorf("notifications: unknown kind %q", kind)
	}
}

// Render builds the subject and both bodies for one notification.
func (r *Renderer) Render(kind auth.NotificationKind, recipient auth.Recipient, payload auth.NotificationPayload) (Rendered, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("notifications: unknown kind %q", kind)
	}

	link, err := r.Link(kind, recipient, payload.Token)
	if err != nil {
		return Rendered{}, err
	}

	name := strings.TrimSpace(recipient.Name)
	if name == "" {
		name = recipient.Email
	}

	minutes := 0
	if !payload.ExpiresAt.IsZero() {
		minutes = int(math.Round(payload.ExpiresAt.Sub(r.now()).Minutes()))
	}

	data := templateData{AppName: r.appName, Name: name, Link: link, Minutes: minutes}

	var text, html bytes.Buffer
	if err := tmpl.text.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("notifications: render %s text: %w", kind, err)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("notifications: render %s html: %w", kind, err)
	}

	return Rendered{
		Subject: tmpl.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
