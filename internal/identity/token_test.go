package identity

import (
	"testing"
	"time"
)

func TestDerivePublicIDIsDeterministicAndKeyed(t *testing.T) {
	m := NewManager("secret-key", time.Minute)
	id1 := m.DerivePublicID("private-abc")
	id2 := m.DerivePublicID("private-abc")
	if id1 != id2 {
		t.Fatalf("DerivePublicID not deterministic: %q != %q", id1, id2)
	}

	other := NewManager("different-key", time.Minute)
	if other.DerivePublicID("private-abc") == id1 {
		t.Fatalf("different signature keys produced the same publicId")
	}
}

func TestDerivePublicIDDistinguishesPrivateIDs(t *testing.T) {
	m := NewManager("secret-key", time.Minute)
	if m.DerivePublicID("a") == m.DerivePublicID("b") {
		t.Fatalf("distinct privateIds collided")
	}
}

func TestIssueAndVerifyBootstrapTokenRoundTrips(t *testing.T) {
	m := NewManager("secret-key", time.Minute)
	token, err := m.IssueBootstrapToken("private-abc")
	if err != nil {
		t.Fatalf("IssueBootstrapToken: %v", err)
	}

	privateID, err := m.VerifyBootstrapToken(token)
	if err != nil {
		t.Fatalf("VerifyBootstrapToken: %v", err)
	}
	if privateID != "private-abc" {
		t.Fatalf("privateID = %q, want %q", privateID, "private-abc")
	}
}

func TestVerifyBootstrapTokenRejectsWrongKey(t *testing.T) {
	m := NewManager("secret-key", time.Minute)
	token, _ := m.IssueBootstrapToken("private-abc")

	other := NewManager("wrong-key", time.Minute)
	if _, err := other.VerifyBootstrapToken(token); err == nil {
		t.Fatalf("expected verification to fail under a different signature key")
	}
}

func TestVerifyBootstrapTokenRejectsExpired(t *testing.T) {
	m := NewManager("secret-key", time.Millisecond)
	token, err := m.IssueBootstrapToken("private-abc")
	if err != nil {
		t.Fatalf("IssueBootstrapToken: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := m.VerifyBootstrapToken(token); err == nil {
		t.Fatalf("expected verification to fail on expired token")
	}
}

func TestVerifyBootstrapTokenRejectsGarbage(t *testing.T) {
	m := NewManager("secret-key", time.Minute)
	if _, err := m.VerifyBootstrapToken("not-a-jwt"); err == nil {
		t.Fatalf("expected verification to fail on malformed token")
	}
}
