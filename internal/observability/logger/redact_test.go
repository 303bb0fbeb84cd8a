package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactMasksSensitiveFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := zap.New(Redact(core)).With(zap.String("client_secret", "shh"))

	l.Info("login",
		zap.String("password", "hunter2"),
		zap.String("New_Password", "hunter3"),
		zap.String("auth_token", "abc"),
		zap.String("email", "alice@example.com"),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	got := entries[0].ContextMap()
	for _, k := range []string{"password", "New_Password", "auth_token", "client_secret"} {
		if got[k] != Redacted {
			t.Fatalf("field %q not redacted: %v", k, got[k])
		}
	}
	if got["email"] != "alice@example.com" {
		t.Fatalf("email should pass through, got %v", got["email"])
	}
}

func TestIsSensitiveKey(t *testing.T) {
	cases := map[string]bool{
		"password":     true,
		"PASSWORD":     true,
		"access_token": true,
		"secret_key":   true,
		"user_id":      false,
		"provider":     false,
	}
	for k, want := range cases {
		if IsSensitiveKey(k) != want {
			t.Fatalf("IsSensitiveKey(%q) = %v, want %v", k, !want, want)
		}
	}
}

func TestFromFallsBackToSingleton(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	From(context.Background()).Info("hello")
	if logs.Len() != 1 {
		t.Fatalf("expected singleton to receive the entry")
	}

	scoped, scopedLogs := observer.New(zap.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(scoped))
	From(ctx).Info("scoped")
	if scopedLogs.Len() != 1 || logs.Len() != 1 {
		t.Fatalf("context logger not used")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"ab":                "***",
		"alice":             "a…e",
		"Alice@Example.com": "a…@e….com",
		"a@b.io":            "a@b.io",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
