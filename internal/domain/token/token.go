// Package token signs and verifies the short-lived voucher verification
// tokens carried in QR codes. It is stateless and safe for concurrent use.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/booking-voucher/internal/domain/apperror"
)

const (
	// Version is the only wire version currently issued and accepted
	Version = "1.0"

	// TypeVoucher is the token type tag
	TypeVoucher = "voucher"

	// MinSecretLength is the minimum accepted signing key size in bytes
	MinSecretLength = 32
)

var (
	ErrMalformed          = apperror.InvalidToken("malformed verification token")
	ErrMissingField       = apperror.InvalidToken("verification token is missing required fields")
	ErrUnsupportedVersion = apperror.InvalidToken("unsupported verification token version")
	ErrWrongType          = apperror.InvalidToken("verification token is not a voucher token")
	ErrBadSignature       = apperror.InvalidToken("verification token signature mismatch")
	ErrTokenExpired       = apperror.Expired("verification token expired")
)

// Claims are the decoded, verified contents of a token
type Claims struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	VoucherNumber string    `json:"voucher_number"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	PartnerID     string    `json:"partner_id"`
	SystemID      string    `json:"system_id"`
}

// SignRequest describes the voucher a token is issued for
type SignRequest struct {
	VoucherNumber string
	PartnerID     string
	SystemID      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// wireToken is the JSON layout carried inside the base64 QR payload
type wireToken struct {
	V   string `json:"v"`
	T   string `json:"t"`
	N   string `json:"n"`
	Exp int64  `json:"exp"`
	Iat int64  `json:"iat"`
	Pid string `json:"pid"`
	Sid string `json:"sid"`
	Sig string `json:"sig"`
}

// Signer signs and verifies tokens with a shared HMAC-SHA256 key
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for the given key
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{secret: key}, nil
}

// Sign produces the base64 transport form of a signed token
func (s *Signer) Sign(req SignRequest) (string, error) {
	if req.VoucherNumber == "" || req.PartnerID == "" || req.SystemID == "" {
		return "", fmt.Errorf("voucher number, partner id and system id are required")
	}
	if req.IssuedAt.IsZero() || !req.ExpiresAt.After(req.IssuedAt) {
		return "", fmt.Errorf("expiry must be after issuance")
	}

	w := wireToken{
		V:   Version,
		T:   TypeVoucher,
		N:   req.VoucherNumber,
		Exp: req.ExpiresAt.UnixMilli(),
		Iat: req.IssuedAt.UnixMilli(),
		Pid: req.PartnerID,
		Sid: req.SystemID,
	}
	sig, err := s.digest(w)
	if err != nil {
		return "", err
	}
	w.Sig = sig

	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Verify decodes and checks a token against now.
// A token is valid strictly before its expiry.
func (s *Signer) Verify(raw string, now time.Time) (*Claims, error) {
	data, err := decodeBase64(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrMalformed
	}

	var w wireToken
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrMalformed
	}

	if w.V == "" || w.T == "" || w.N == "" || w.Pid == "" || w.Sid == "" || w.Sig == "" || w.Exp == 0 || w.Iat == 0 {
		return nil, ErrMissingField
	}
	if w.V != Version {
		return nil, ErrUnsupportedVersion
	}
	if w.T != TypeVoucher {
		return nil, ErrWrongType
	}
	if now.UnixMilli() >= w.Exp {
		return nil, ErrTokenExpired
	}

	expected, err := s.digest(w)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(expected), []byte(w.Sig)) {
		return nil, ErrBadSignature
	}

	return &Claims{
		Version:       w.V,
		Type:          w.T,
		VoucherNumber: w.N,
		IssuedAt:      time.UnixMilli(w.Iat).UTC(),
		ExpiresAt:     time.UnixMilli(w.Exp).UTC(),
		PartnerID:     w.Pid,
		SystemID:      w.Sid,
	}, nil
}

// digest computes the hex HMAC over every field except the signature.
// Fields are encoded as a JSON array so no separator can be smuggled in.
func (s *Signer) digest(w wireToken) (string, error) {
	canonical, err := json.Marshal([]interface{}{w.V, w.T, w.N, w.Exp, w.Iat, w.Pid, w.Sid})
	if err != nil {
		return "", fmt.Errorf("failed to build canonical payload: %w", err)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not
func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty token")
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
