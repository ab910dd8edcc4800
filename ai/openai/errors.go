package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/poiesic/ragd/ai"
)

// classifyProviderError sorts a transport error into the ai error
// taxonomy. Rate limiting and server-side failures are transient; any
// other HTTP-level refusal is permanent. Errors with no status code at
// all are connection-level and therefore transient.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ai.ErrProviderUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ai.ErrProviderUnavailable, err)
	}

	if status, ok := statusCodeFromError(err); ok {
		if status == 429 || status >= 500 {
			return fmt.Errorf("%w: %s", ai.ErrProviderUnavailable, err)
		}
		if status >= 400 {
			return fmt.Errorf("%w: %s", ai.ErrProviderRejected, err)
		}
	}

	return fmt.Errorf("%w: %s", ai.ErrProviderUnavailable, err)
}

// statusCodeFromError digs an HTTP status code out of an error message.
// The OpenAI-compatible clients report failures as formatted strings, so
// string inspection is all there is.
func statusCodeFromError(err error) (int, bool) {
	msg := err.Error()
	for _, marker := range []string{"status code: ", "status: "} {
		idx := strings.Index(msg, marker)
		if idx < 0 {
			continue
		}
		rest := msg[idx+len(marker):]
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if end == 3 {
			status, convErr := strconv.Atoi(rest[:end])
			if convErr == nil {
				return status, true
			}
		}
	}
	return 0, false
}
