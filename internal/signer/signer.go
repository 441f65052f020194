package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Signer computes HMAC-SHA256 request signatures over a canonical string.
// The canonical layout is part of the wire contract with the gateway:
//
//	METHOD \n PATH \n TIMESTAMP \n NONCE \n hex(SHA256(body))
//
// PATH carries the encoded query string when the request has one.
//
// Webhook notifications omit method and path (both are fixed by the
// callback contract):
//
//	TIMESTAMP \n hex(SHA256(body))
type Signer struct {
	secret []byte
}

func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Nonce returns a fresh single-use value. Process-unique, so a nonce is
// never reused for the same timestamp.
func (s *Signer) Nonce() string {
	return uuid.NewString()
}

// Timestamp renders t as the unix-seconds string included in the canonical
// string and sent in the timestamp header.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// Sign produces the signature for a request. Deterministic under identical
// inputs; changing any input changes the signature.
func (s *Signer) Sign(method, path, timestamp, nonce string, body []byte) string {
	canonical := method + "\n" + path + "\n" + timestamp + "\n" + nonce + "\n" + bodyDigest(body)
	return s.mac(canonical)
}

// SignWebhook produces the signature expected on an inbound notification.
func (s *Signer) SignWebhook(timestamp string, body []byte) string {
	canonical := timestamp + "\n" + bodyDigest(body)
	return s.mac(canonical)
}

// VerifyWebhook compares the supplied signature against the expected one in
// constant time.
func (s *Signer) VerifyWebhook(timestamp string, body []byte, signature string) bool {
	expected := s.SignWebhook(timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Signer) mac(canonical string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
