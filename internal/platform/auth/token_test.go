package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	key := []byte("unit-test-key")

	tokenStr, err := IssueToken(key, "labadmin", 3, "admin", "lab_north", RealmHisto, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	claims, err := ParseToken(key, tokenStr)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}

	if claims.Subject != "labadmin" {
		t.Errorf("expected subject labadmin, got %s", claims.Subject)
	}
	if claims.UserID != 3 {
		t.Errorf("expected user ID 3, got %d", claims.UserID)
	}
	if claims.Role != "admin" {
		t.Errorf("expected role admin, got %s", claims.Role)
	}
	if claims.TenantID != "lab_north" {
		t.Errorf("expected tenant lab_north, got %s", claims.TenantID)
	}
	if claims.Realm != RealmHisto {
		t.Errorf("expected realm histo, got %s", claims.Realm)
	}
}

func TestParseToken_WrongKey(t *testing.T) {
	tokenStr, err := IssueToken([]byte("key-a"), "user", 1, "doctor", "default", RealmHisto, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	if _, err := ParseToken([]byte("key-b"), tokenStr); err == nil {
		t.Error("expected error parsing token with wrong key")
	}
}

func TestParseToken_Expired(t *testing.T) {
	key := []byte("unit-test-key")
	tokenStr, err := IssueToken(key, "user", 1, "doctor", "default", RealmHisto, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	if _, err := ParseToken(key, tokenStr); err == nil {
		t.Error("expected error parsing expired token")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken([]byte("key"), "not.a.token"); err == nil {
		t.Error("expected error parsing garbage token")
	}
}
