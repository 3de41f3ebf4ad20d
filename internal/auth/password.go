package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a shared secret with the given bcrypt cost.
func HashSecret(secret string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// TriggerVerifier checks the shared secret presented by the escalation trigger.
// A bcrypt hash takes precedence over a plaintext secret. With neither
// configured every token is rejected.
type TriggerVerifier struct {
	secret []byte
	hash   []byte
}

// NewTriggerVerifier builds a verifier from the configured secret and hash.
func NewTriggerVerifier(secret, hash string) *TriggerVerifier {
	return &TriggerVerifier{
		secret: []byte(strings.TrimSpace(secret)),
		hash:   []byte(strings.TrimSpace(hash)),
	}
}

// Configured reports whether any secret is set.
func (v *TriggerVerifier) Configured() bool {
	return v != nil && (len(v.secret) > 0 || len(v.hash) > 0)
}

// Verify reports whether token matches the configured secret.
func (v *TriggerVerifier) Verify(token string) bool {
	if !v.Configured() || token == "" {
		return false
	}
	if len(v.hash) > 0 {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare(v.secret, []byte(token)) == 1
}
