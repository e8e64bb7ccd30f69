package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "ADMIN"

var (
	ErrDisabled     = errors.New("admin auth disabled")
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("admin role required")
)

// Claims carries the operator role next to the registered claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(c.Role), RoleAdmin)
}

// Verifier checks HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// BearerToken strips the "Bearer " prefix from an Authorization value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Parse validates tokenString and returns its claims.
func (v *Verifier) Parse(tokenString string) (Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return Claims{}, ErrDisabled
	}
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Authorize parses an Authorization header value and requires the admin role.
func (v *Verifier) Authorize(header string) (Claims, error) {
	tokenString, err := BearerToken(header)
	if err != nil {
		return Claims{}, err
	}
	claims, err := v.Parse(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if !claims.IsAdmin() {
		return Claims{}, ErrForbidden
	}
	return claims, nil
}

// Sign issues an HS256 token for subject with role, valid for ttl.
func Sign(secret, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
