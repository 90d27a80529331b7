package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCustomerLookup(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	exerciseCustomerLookup(t, s)
}

func TestMemoryStoreConversations(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	exerciseConversations(t, s)
}

func TestMemoryStoreComplaints(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	exerciseComplaints(t, s)
}

func TestMemoryStoreSimulations(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	exerciseSimulations(t, s)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.FindByEmail(context.Background(), "james.wilson@email.com", time.Now()); err == nil {
		t.Fatalf("expected closed store error")
	}
}

func TestNormalizeReg(t *testing.T) {
	cases := map[string]string{
		"ab12 cde":      "AB12 CDE",
		"  yn23\txyz  ": "YN23 XYZ",
		"FG67  HIJ":     "FG67 HIJ",
	}
	for in, want := range cases {
		if got := NormalizeReg(in); got != want {
			t.Fatalf("NormalizeReg(%q) = %q, want %q", in, got, want)
		}
	}
}
