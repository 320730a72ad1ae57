package interactions

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return pub, priv
}

func sign(priv ed25519.PrivateKey, timestamp string, body []byte) string {
	msg := append([]byte(timestamp), body...)
	return hex.EncodeToString(ed25519.Sign(priv, msg))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	pub, priv := newKeyPair(t)
	otherPub, _ := newKeyPair(t)
	body := []byte(`{"type":1}`)
	ts := "1700000000"
	sig := sign(priv, ts, body)

	tests := []struct {
		name      string
		body      []byte
		signature string
		timestamp string
		key       ed25519.PublicKey
		want      bool
	}{
		{name: "valid", body: body, signature: sig, timestamp: ts, key: pub, want: true},
		{name: "wrong key", body: body, signature: sig, timestamp: ts, key: otherPub},
		{name: "tampered body", body: []byte(`{"type":2}`), signature: sig, timestamp: ts, key: pub},
		{name: "tampered timestamp", body: body, signature: sig, timestamp: "1700000001", key: pub},
		{name: "missing signature", body: body, timestamp: ts, key: pub},
		{name: "missing timestamp", body: body, signature: sig, key: pub},
		{name: "signature not hex", body: body, signature: "not-hex", timestamp: ts, key: pub},
		{name: "short signature", body: body, signature: sig[:20], timestamp: ts, key: pub},
		{name: "short key", body: body, signature: sig, timestamp: ts, key: pub[:16]},
		{name: "nil key", body: body, signature: sig, timestamp: ts},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Verify(tt.body, tt.signature, tt.timestamp, tt.key); got != tt.want {
				t.Fatalf("Verify = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestVerifyRequestReturnsBody(t *testing.T) {
	t.Parallel()

	pub, priv := newKeyPair(t)
	body := []byte(`{"type":1,"id":"abc"}`)
	ts := "1700000000"

	req := httptest.NewRequest(http.MethodPost, "/api/interactions", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, sign(priv, ts, body))
	req.Header.Set(HeaderTimestamp, ts)

	got, ok := VerifyRequest(req, pub)
	if !ok {
		t.Fatal("expected request to verify")
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body mismatch: %q", got)
	}
}

func TestVerifyRequestRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	pub, priv := newKeyPair(t)
	body := bytes.Repeat([]byte("a"), MaxBodyBytes+1)
	ts := "1700000000"

	req := httptest.NewRequest(http.MethodPost, "/api/interactions", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, sign(priv, ts, body))
	req.Header.Set(HeaderTimestamp, ts)

	if _, ok := VerifyRequest(req, pub); ok {
		t.Fatal("oversized body must not verify")
	}
}
