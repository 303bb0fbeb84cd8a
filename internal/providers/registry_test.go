package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/caishen/internal/domain"
)

type fakeProvider struct{ slug string }

func (f fakeProvider) Name() domain.AuthProvider { return domain.AuthProvider(f.slug) }
func (f fakeProvider) Slug() string              { return f.slug }
func (f fakeProvider) Matches(n string) bool     { return n == f.slug }
func (f fakeProvider) AuthorizationURL(context.Context, string) (string, error) {
	return "", nil
}
func (f fakeProvider) ExchangeCode(context.Context, string) (*domain.ExternalUser, error) {
	return nil, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(fakeProvider{"google"}, nil, fakeProvider{"facebook"})

	p, err := r.Lookup(" Facebook ")
	if err != nil || p.Slug() != "facebook" {
		t.Fatalf("lookup facebook: %v %v", p, err)
	}
	if _, err := r.Lookup("twitter"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("want ErrUnknownProvider, got %v", err)
	}
	if _, err := r.Lookup(""); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("empty name must be unknown")
	}
	if got := r.Slugs(); len(got) != 2 {
		t.Fatalf("slugs = %v", got)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Alice":                          "Alice",
		"<b>Bob</b>":                     "Bob",
		"O'Brien":                        "O'Brien",
		"<script>alert(1)</script>Carol": "Carol",
		"  Dave  ":                       "Dave",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
