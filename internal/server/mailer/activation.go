package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	texttemplate "text/template"
)

// ActivationSubject is the subject line of activation mails.
const ActivationSubject = "Activate your account"

var activationHTML = template.Must(template.New("activation").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello {{.UserName}},</p>
<p>Please confirm your email address to activate your account:</p>
<p><a href="{{.Link}}">Activate account</a></p>
<p>The link expires on {{.ExpiresAt}}.</p>
</body>
</html>
`))

var activationText = texttemplate.Must(texttemplate.New("activation").Parse(`Hello {{.UserName}},

Please confirm your email address to activate your account:
{{.Link}}

The link expires on {{.ExpiresAt}}.
`))

// Activation carries what the activation mail needs.
type Activation struct {
	To        string
	UserName  string
	Token     string
	ExpiresAt string
}

// ActivationLink appends the token to base as the "token" query parameter,
// keeping any query parameters base already has.
func ActivationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("verification url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ActivationEmail renders the activation mail for a.
func ActivationEmail(verificationURL string, a Activation) (Email, error) {
	link, err := ActivationLink(verificationURL, a.Token)
	if err != nil {
		return Email{}, err
	}

	data := struct {
		UserName  string
		Link      string
		ExpiresAt string
	}{a.UserName, link, a.ExpiresAt}

	var html, text bytes.Buffer
	if err := activationHTML.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render activation html: %w", err)
	}
	if err := activationText.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render activation text: %w", err)
	}

	return Email{
		To:       []string{a.To},
		Subject:  ActivationSubject,
		Body:     text.String(),
		HTMLBody: html.String(),
	}, nil
}
