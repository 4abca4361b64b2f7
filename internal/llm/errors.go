package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig covers missing or rejected credentials and unusable provider
	// settings. Retrying will not help.
	ErrConfig = errors.New("completion provider not configured")
	// ErrTransient covers timeouts, rate limits, 5xx and network failures.
	ErrTransient = errors.New("completion provider temporarily unavailable")
	// ErrMalformedResponse is returned when the provider answered but the
	// payload carried no usable text.
	ErrMalformedResponse = errors.New("completion provider returned a malformed response")
)

type Category string

const (
	CategoryNone      Category = "none"
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
	CategoryMalformed Category = "malformed"
	CategoryTimeout   Category = "timeout"
	CategoryCanceled  Category = "canceled"
	CategoryUnknown   Category = "unknown"
)

// Classify maps any provider error onto the completion error taxonomy.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrConfig):
		return CategoryConfig
	case errors.Is(err, ErrMalformedResponse):
		return CategoryMalformed
	case errors.Is(err, ErrTransient), isRetryable(err):
		return CategoryTransient
	default:
		return CategoryUnknown
	}
}

// IsConfig reports whether err means the AI path cannot work until the user
// fixes their setup.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

type providerHTTPError struct {
	provider   string
	statusCode int
	message    string
}

func (e *providerHTTPError) Error() string {
	if strings.TrimSpace(e.message) == "" {
		return fmt.Sprintf("%s request failed with status %d", e.provider, e.statusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.provider, e.statusCode, e.message)
}

func (e *providerHTTPError) Unwrap() error {
	switch {
	case e.statusCode == 401 || e.statusCode == 403 || e.statusCode == 400 || e.statusCode == 404:
		return ErrConfig
	case retryableStatus(e.statusCode):
		return ErrTransient
	default:
		return nil
	}
}
