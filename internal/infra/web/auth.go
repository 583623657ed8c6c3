package web

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingToken = errors.New("missing token")

// AuthManager accepts either the static API key or an HS256 JWT it minted.
type AuthManager struct {
	apiKey string
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(apiKey, jwtSecret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthManager{apiKey: apiKey, secret: []byte(jwtSecret), ttl: ttl}
}

// Enabled reports whether any credential is configured.
func (a *AuthManager) Enabled() bool { return a.apiKey != "" || len(a.secret) > 0 }

type ClientClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint issues a signed token for subject.
func (a *AuthManager) Mint(subject string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := time.Now()
	exp := now.Add(a.ttl)
	claims := ClientClaims{
		Role: "dashboard",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   subject,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Authenticate checks the bearer credential of r and returns the auth method
// ("api_key" or "jwt") and the client name.
func (a *AuthManager) Authenticate(r *http.Request) (method, client string, err error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", "", errMissingToken
	}
	tok := strings.TrimSpace(hdr[7:])
	if a.apiKey != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(a.apiKey)) == 1 {
		return "api_key", "api_key", nil
	}
	if len(a.secret) == 0 {
		return "api_key", "", errors.New("invalid api key")
	}
	claims, err := a.parse(tok)
	if err != nil {
		return "jwt", "", err
	}
	return "jwt", claims.Subject, nil
}

func (a *AuthManager) parse(tok string) (*ClientClaims, error) {
	claims := &ClientClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
