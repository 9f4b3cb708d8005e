package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat    = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid signature")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenClaims    = errors.New("invalid claims")
)

// Claims is the HS256 token payload the gate accepts. The caller id comes
// from user_id, falling back to a numeric sub.
type Claims struct {
	Issuer      string   `json:"iss,omitempty"`
	Subject     string   `json:"sub,omitempty"`
	Audience    any      `json:"aud,omitempty"` // string or []string
	ExpiresAt   int64    `json:"exp,omitempty"`
	NotBefore   int64    `json:"nbf,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
	UserID      int64    `json:"user_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	Secret   []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

// Verify checks the signature and the time, issuer and audience claims, then
// returns the Principal the token describes.
func (v Verifier) Verify(token string) (Principal, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Principal{}, ErrTokenFormat
	}
	headerB, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Principal{}, ErrTokenFormat
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Principal{}, ErrTokenFormat
	}
	sigB, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Principal{}, ErrTokenFormat
	}

	var hdr struct{ Alg, Typ string }
	if err := json.Unmarshal(headerB, &hdr); err != nil {
		return Principal{}, ErrTokenFormat
	}
	if !strings.EqualFold(hdr.Alg, "HS256") {
		return Principal{}, errors.New("unsupported alg")
	}
	if !hmac.Equal(sigB, sign(v.Secret, parts[0]+"."+parts[1])) {
		return Principal{}, ErrTokenSignature
	}

	var c Claims
	if err := json.Unmarshal(payloadB, &c); err != nil {
		return Principal{}, ErrTokenClaims
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	ts := now().Unix()
	if c.NotBefore != 0 && ts < c.NotBefore {
		return Principal{}, ErrTokenExpired
	}
	if c.ExpiresAt != 0 && ts >= c.ExpiresAt {
		return Principal{}, ErrTokenExpired
	}
	if v.Issuer != "" && !strings.EqualFold(c.Issuer, v.Issuer) {
		return Principal{}, ErrTokenClaims
	}
	if v.Audience != "" && !audContains(c.Audience, v.Audience) {
		return Principal{}, ErrTokenClaims
	}
	uid := c.UserID
	if uid == 0 && c.Subject != "" {
		if uid, err = strconv.ParseInt(c.Subject, 10, 64); err != nil {
			return Principal{}, ErrTokenClaims
		}
	}
	if uid <= 0 {
		return Principal{}, ErrTokenClaims
	}
	return NewPrincipal(uid, c.Permissions, c.Roles), nil
}

// Sign issues an HS256 token for c. Used by tests and the dev seed.
func Sign(secret []byte, c Claims) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	unsigned := head + "." + base64.RawURLEncoding.EncodeToString(payload)
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sign(secret, unsigned)), nil
}

func sign(secret []byte, s string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(s))
	return mac.Sum(nil)
}

func audContains(aud any, expected string) bool {
	switch v := aud.(type) {
	case string:
		return strings.EqualFold(v, expected)
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && strings.EqualFold(s, expected) {
				return true
			}
		}
	}
	return false
}
