package interactions

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/ctfchannels/pkg/log"
)

// Header names carrying the detached signature.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// MaxBodyBytes bounds the size of an interaction body read by VerifyRequest.
const MaxBodyBytes = 1 << 20

// Verify reports whether signature is a valid Ed25519 signature by key over
// timestamp followed by body. It fails closed: missing headers, malformed hex,
// a key of the wrong size and any panic inside the check all return false.
func Verify(body []byte, signature, timestamp string, key ed25519.PublicKey) (valid bool) {
	if signature == "" || timestamp == "" || len(key) != ed25519.PublicKeySize {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			log.ErrorLoggerRaw().Error("Signature check panicked", "panic", fmt.Sprint(r))
			valid = false
		}
	}()

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, timestamp)
	return discordgo.VerifyInteraction(req, key)
}

// VerifyRequest reads r's body once and verifies it against the signature
// headers. The raw body is returned for decoding whether or not it verified.
func VerifyRequest(r *http.Request, key ed25519.PublicKey) ([]byte, bool) {
	if r.Body == nil {
		return nil, false
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil || len(body) > MaxBodyBytes {
		return nil, false
	}
	return body, Verify(body, r.Header.Get(HeaderSignature), r.Header.Get(HeaderTimestamp), key)
}
