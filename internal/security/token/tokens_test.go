package tokens

import "testing"

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatal(err)
	}
	// 32 bytes -> 43 chars base64url sin padding
	if len(a) != 43 {
		t.Fatalf("len = %d", len(a))
	}
	b, _ := GenerateOpaqueToken(32)
	if a == b {
		t.Fatalf("tokens should be random")
	}
}
