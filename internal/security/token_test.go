package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	token, errIssue := IssueAdminToken("secret", time.Hour, 7, "root")
	if errIssue != nil {
		t.Fatalf("IssueAdminToken: %v", errIssue)
	}

	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("ParseAdminToken: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}

func TestParseAdminToken_WrongSecretRejected(t *testing.T) {
	token, errIssue := IssueAdminToken("secret", time.Hour, 7, "root")
	if errIssue != nil {
		t.Fatalf("IssueAdminToken: %v", errIssue)
	}
	if _, errParse := ParseAdminToken("other", token); errParse == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}

func TestParseAdminToken_ExpiredRejected(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	claims := AdminClaims{
		AdminID:  7,
		Username: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}
	token, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errParse := ParseAdminToken("secret", token); errParse == nil {
		t.Fatal("expected parse failure for expired token")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, errHash := HashPassword("hunter22")
	if errHash != nil {
		t.Fatalf("HashPassword: %v", errHash)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "hunter23") {
		t.Fatal("expected mismatched password to fail")
	}
}
