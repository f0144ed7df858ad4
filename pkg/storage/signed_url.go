package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed and tampered upload tokens.
	ErrInvalidToken = errors.New("invalid upload token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("upload token expired")
)

// UploadGrant is what a signed upload token authorises: one object, written
// by one owner, of at most MaxSize bytes.
type UploadGrant struct {
	Owner       string    `json:"o"`
	ObjectKey   string    `json:"k"`
	FileName    string    `json:"f"`
	ContentType string    `json:"t"`
	MaxSize     int64     `json:"s"`
	ExpiresAt   time.Time `json:"e"`
}

// UploadSigner issues and verifies HMAC signed upload tokens.
type UploadSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewUploadSigner constructs a signer with the provided secret and TTL.
func NewUploadSigner(secret string, ttl time.Duration) *UploadSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &UploadSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign fills in the grant's expiry and returns its token.
func (s *UploadSigner) Sign(grant UploadGrant) (string, UploadGrant, error) {
	if grant.Owner == "" || grant.ObjectKey == "" {
		return "", UploadGrant{}, fmt.Errorf("owner and object key required")
	}
	if len(s.secret) == 0 {
		return "", UploadGrant{}, fmt.Errorf("signing secret missing")
	}
	grant.ExpiresAt = s.now().Add(s.ttl).UTC().Truncate(time.Second)
	raw, err := json.Marshal(grant)
	if err != nil {
		return "", UploadGrant{}, fmt.Errorf("encode grant: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + s.mac(body), grant, nil
}

// Verify checks the token signature and expiry and returns its grant.
func (s *UploadSigner) Verify(token string) (UploadGrant, error) {
	body, signature, ok := strings.Cut(token, ".")
	if !ok || body == "" || signature == "" {
		return UploadGrant{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.mac(body)), []byte(signature)) {
		return UploadGrant{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return UploadGrant{}, ErrInvalidToken
	}
	var grant UploadGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return UploadGrant{}, ErrInvalidToken
	}
	if s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *UploadSigner) mac(body string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
