package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Realms separate the two user populations. ERP tokens belong to the device
// management side; histo tokens belong to the lab reporting side. A token is
// only valid for routes in its own realm.
const (
	RealmERP   = "erp"
	RealmHisto = "histo"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
	Realm    string `json:"realm"`
}

// IssueToken signs an HS256 access token for the given user. The subject is
// the username; the user_id claim carries the numeric id the workflow stamps
// into created_by, verified_by and signed_by.
func IssueToken(signingKey []byte, username string, userID int64, role, tenantID, realm string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   userID,
		Role:     role,
		TenantID: tenantID,
		Realm:    realm,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// TokenIssuer carries the signing material the login surfaces share.
type TokenIssuer struct {
	SigningKey []byte
	TTL        time.Duration
}

// Issue signs an access token with the issuer's key and lifetime.
func (ti TokenIssuer) Issue(username string, userID int64, role, tenantID, realm string) (string, error) {
	return IssueToken(ti.SigningKey, username, userID, role, tenantID, realm, ti.TTL)
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(signingKey []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
