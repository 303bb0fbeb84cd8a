package email

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

// WelcomeData son los datos del email de bienvenida.
type WelcomeData struct {
	Name     string
	Email    string
	LoginURL string
}

var welcomeHTML = htmltpl.Must(htmltpl.New("welcome.html").Parse(
	`<p>Hi {{.Name}},</p>
<p>An account has been created for you with the email <b>{{.Email}}</b>.</p>
{{if .LoginURL}}<p><a href="{{.LoginURL}}">Log in</a></p>{{end}}`))

var welcomeText = texttpl.Must(texttpl.New("welcome.txt").Parse(
	`Hi {{.Name}},

An account has been created for you with the email {{.Email}}.
{{if .LoginURL}}Log in at {{.LoginURL}}
{{end}}`))

// RenderWelcome devuelve subject, html y texto del email de bienvenida.
func RenderWelcome(d WelcomeData) (subject, html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := welcomeHTML.Execute(&hb, d); err != nil {
		return "", "", "", fmt.Errorf("render welcome html: %w", err)
	}
	if err := welcomeText.Execute(&tb, d); err != nil {
		return "", "", "", fmt.Errorf("render welcome text: %w", err)
	}
	return "Welcome to Caishen", hb.String(), tb.String(), nil
}
