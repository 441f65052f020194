package signer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignDeterministic(t *testing.T) {
	s := New("merchant-secret")
	body := []byte(`{"amount":"10.50000000"}`)

	a := s.Sign("POST", "/payments", "1700000000", "nonce-1", body)
	b := s.Sign("POST", "/payments", "1700000000", "nonce-1", body)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded SHA-256
}

func TestSignInputSensitivity(t *testing.T) {
	s := New("merchant-secret")
	body := []byte(`{"amount":"10.50000000"}`)
	base := s.Sign("POST", "/payments", "1700000000", "nonce-1", body)

	assert.NotEqual(t, base, s.Sign("GET", "/payments", "1700000000", "nonce-1", body))
	assert.NotEqual(t, base, s.Sign("POST", "/payments/x", "1700000000", "nonce-1", body))
	assert.NotEqual(t, base, s.Sign("POST", "/payments", "1700000001", "nonce-1", body))
	assert.NotEqual(t, base, s.Sign("POST", "/payments", "1700000000", "nonce-2", body))
	assert.NotEqual(t, base, s.Sign("POST", "/payments", "1700000000", "nonce-1", []byte(`{}`)))

	other := New("other-secret")
	assert.NotEqual(t, base, other.Sign("POST", "/payments", "1700000000", "nonce-1", body))
}

func TestNonceUnique(t *testing.T) {
	s := New("secret")
	seen := make(map[string]bool)
	for range 1000 {
		n := s.Nonce()
		require.False(t, seen[n], "nonce reused: %s", n)
		seen[n] = true
	}
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Unix(1700000000, 0))
	assert.Equal(t, "1700000000", ts)
}

func TestVerifyWebhook(t *testing.T) {
	s := New("webhook-secret")
	body := []byte(`{"id":"pay_1","status":"completed"}`)
	sig := s.SignWebhook("1700000000", body)

	assert.True(t, s.VerifyWebhook("1700000000", body, sig))
	assert.False(t, s.VerifyWebhook("1700000001", body, sig))
	assert.False(t, s.VerifyWebhook("1700000000", []byte(`{}`), sig))
	assert.False(t, s.VerifyWebhook("1700000000", body, sig[:63]+"0"))
	assert.False(t, s.VerifyWebhook("1700000000", body, ""))
}
