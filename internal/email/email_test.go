package email

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRenderWelcomeEscapesHTML(t *testing.T) {
	subject, html, text, err := RenderWelcome(WelcomeData{
		Name:     "<b>Mallory</b>",
		Email:    "m@example.com",
		LoginURL: "http://localhost/api/v1/login/access-token",
	})
	if err != nil {
		t.Fatal(err)
	}
	if subject == "" {
		t.Fatal("empty subject")
	}
	if strings.Contains(html, "<b>Mallory</b>") {
		t.Fatalf("name not escaped in html: %s", html)
	}
	if !strings.Contains(text, "m@example.com") || !strings.Contains(text, "Log in at") {
		t.Fatalf("unexpected text body: %s", text)
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	s := NewSMTPSender("smtp.test", 587, "noreply@test", "", "", "")
	m := s.buildMessage("a@test", "Hello", "<p>hi</p>", "hi")

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"multipart/alternative", "text/plain", "text/html", "Subject: Hello"} {
		if !strings.Contains(out, want) {
			t.Fatalf("message missing %q", want)
		}
	}
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).Send(context.Background(), "a@b", "s", "h", "t"); err != nil {
		t.Fatal(err)
	}
}
