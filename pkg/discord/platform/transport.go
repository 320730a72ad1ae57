package platform

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// discordgo only keeps the body of some non-success answers (429 and 502 come
// back as plain errors), so the session's transport records every non-success
// response for the call that asked for it.

type captureKey struct{}

// responseCapture holds the last non-success response of one call.
type responseCapture struct {
	status int
	body   []byte
}

func withResponseCapture(ctx context.Context) (context.Context, *responseCapture) {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &responseCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

type capturingTransport struct {
	base http.RoundTripper
}

func (t *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil || resp.StatusCode < http.StatusMultipleChoices {
		return resp, err
	}
	c, ok := req.Context().Value(captureKey{}).(*responseCapture)
	if !ok {
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		return resp, nil
	}
	c.status = resp.StatusCode
	c.body = body
	return resp, nil
}

// installCapture wraps the client's transport once.
func installCapture(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if _, ok := client.Transport.(*capturingTransport); ok {
		return client
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = &capturingTransport{base: base}
	return client
}
