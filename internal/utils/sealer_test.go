package utils

import (
	"errors"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer("token-secret")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sealed, err := s.Seal("access-123")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "access-123" {
		t.Fatal("sealed value equals plaintext")
	}
	again, _ := s.Seal("access-123")
	if again == sealed {
		t.Error("expected a fresh nonce per seal")
	}
	plain, err := s.Open(sealed)
	if err != nil || plain != "access-123" {
		t.Fatalf("Open = %q, %v", plain, err)
	}
}

func TestSealerEmptyAndCorrupt(t *testing.T) {
	s, _ := NewSealer("token-secret")
	if v, err := s.Seal(""); v != "" || err != nil {
		t.Errorf("Seal(\"\") = %q, %v", v, err)
	}
	if v, err := s.Open(""); v != "" || err != nil {
		t.Errorf("Open(\"\") = %q, %v", v, err)
	}
	if _, err := s.Open("not base64!"); !errors.Is(err, ErrSealedValue) {
		t.Errorf("expected ErrSealedValue, got %v", err)
	}
	sealed, _ := s.Seal("x")
	other, _ := NewSealer("different")
	if _, err := other.Open(sealed); !errors.Is(err, ErrSealedValue) {
		t.Errorf("wrong key should fail, got %v", err)
	}
	if _, err := NewSealer(""); err == nil {
		t.Error("empty secret accepted")
	}
}
