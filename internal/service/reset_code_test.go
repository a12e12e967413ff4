package service

import "testing"

func TestGenerateResetCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, digest, err := GenerateResetCode()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if code[0] == '0' {
			t.Fatalf("expected no leading zero, got %q", code)
		}
		if digest != HashResetCode(code) {
			t.Fatalf("expected recomputable digest")
		}
	}
}

func TestMatchResetCode(t *testing.T) {
	code, digest, err := GenerateResetCode()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !MatchResetCode(code, digest) {
		t.Fatalf("expected match for own digest")
	}
	if MatchResetCode("000000", digest) {
		t.Fatalf("expected mismatch for wrong code")
	}
	if MatchResetCode(code, "") {
		t.Fatalf("expected mismatch for empty digest")
	}
}

func TestIsValidResetCode(t *testing.T) {
	valid := []string{"100000", "999999", "123456"}
	invalid := []string{"", "12345", "1234567", "12345a", "abcdef"}
	for _, code := range valid {
		if !isValidResetCode(code) {
			t.Fatalf("expected %q valid", code)
		}
	}
	for _, code := range invalid {
		if isValidResetCode(code) {
			t.Fatalf("expected %q invalid", code)
		}
	}
}
