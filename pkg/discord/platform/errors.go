package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// UpstreamError is a non-success answer from Discord, kept verbatim so it can be
// shown to the user who invoked the command.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
	Code       int
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// MissingPermissions reports whether Discord rejected the call for lack of a permission.
func (e *UpstreamError) MissingPermissions() bool {
	return e != nil && e.Code == discordgo.ErrCodeMissingPermissions
}

// RegistrationError describes a failed command registration in the same
// diagnostic layout operators see in the HTTP response.
type RegistrationError struct {
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

func (e *RegistrationError) Error() string {
	if e == nil {
		return "Error registering commands"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("Error registering commands \n %s: %v", e.URL, e.Cause)
	}
	text := fmt.Sprintf("Error registering commands \n %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		text = fmt.Sprintf("%s \n\n %s", text, e.Body)
	}
	return text
}

func (e *RegistrationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsMissingPermissions reports whether err carries Discord error code 50013.
func IsMissingPermissions(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.MissingPermissions()
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeMissingPermissions
	}
	return false
}

// LogAttrs returns the upstream status and body for the single failure log line.
func (e *UpstreamError) LogAttrs() []any {
	if e == nil {
		return nil
	}
	attrs := []any{"status", e.StatusCode, "body", e.Body}
	if e.MissingPermissions() {
		attrs = append(attrs, "hint", "bot lacks Manage Channels")
	}
	return attrs
}

// asUpstream converts a failed call into an UpstreamError. The captured
// response wins when present since discordgo drops the body of 429 and 502
// answers; otherwise the REST and rate limit errors discordgo returns are used.
// Transport failures return nil.
func asUpstream(operation string, err error, capture *responseCapture) *UpstreamError {
	u := &UpstreamError{Operation: operation, Cause: err}

	var restErr *discordgo.RESTError
	hasREST := errors.As(err, &restErr) && restErr != nil
	if hasREST && restErr.Message != nil {
		u.Code = restErr.Message.Code
	}

	switch {
	case capture != nil && capture.status != 0:
		u.StatusCode = capture.status
		u.Body = strings.TrimSpace(string(capture.body))
		if u.Code == 0 {
			u.Code = apiErrorCode(capture.body)
		}
	case hasREST && restErr.Response != nil:
		u.StatusCode = restErr.Response.StatusCode
		u.Body = strings.TrimSpace(string(restErr.ResponseBody))
	default:
		var rl *discordgo.RateLimitError
		if !errors.As(err, &rl) || rl == nil || rl.RateLimit == nil {
			return nil
		}
		u.StatusCode = http.StatusTooManyRequests
		if rl.TooManyRequests != nil {
			body, _ := json.Marshal(rl.TooManyRequests)
			u.Body = string(body)
		}
	}
	return u
}

func apiErrorCode(body []byte) int {
	var msg discordgo.APIErrorMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return 0
	}
	return msg.Code
}
