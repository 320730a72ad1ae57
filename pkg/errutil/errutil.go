package errutil

import (
	"errors"
	"fmt"

	"github.com/small-frappuccino/ctfchannels/pkg/log"
)

// logAttrser is implemented by errors that carry extra fields worth logging,
// such as the status and body of a rejected Discord request.
type logAttrser interface {
	LogAttrs() []any
}

// HandleDiscordError runs fn and logs its error as a failed Discord operation,
// together with attrs and any fields the error itself provides.
// The error is returned unmodified so callers can still inspect it with errors.As.
func HandleDiscordError(operation string, fn func() error, attrs ...any) error {
	if fn == nil {
		return errors.New("nil function provided")
	}

	err := fn()
	if err == nil {
		return nil
	}

	fields := append([]any{"operation", operation}, attrs...)
	var extra logAttrser
	if errors.As(err, &extra) {
		fields = append(fields, extra.LogAttrs()...)
	}
	fields = append(fields, "err", err)
	log.ErrorLoggerRaw().Error("Discord operation failed", fields...)
	return err
}

// HandleConfigError runs fn and wraps its error with the operation and path.
func HandleConfigError(operation, path string, fn func() error) error {
	if fn == nil {
		return errors.New("nil function provided")
	}

	err := fn()
	if err == nil {
		return nil
	}

	log.ErrorLoggerRaw().Error("Config operation failed", "operation", operation, "path", path, "err", err)
	return fmt.Errorf("config %s %s: %w", operation, path, err)
}
