package marketapi

import (
	"fmt"
	"time"

	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// QuotaExhaustedError signals that the remote API quota window is used up.
// It is expected flow control, callers stop and resume after ResetAt,
// it is never logged as an error.
type QuotaExhaustedError struct {
	ResetAt time.Time
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("marketplace API quota exhausted, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func IsQuotaExhausted(err error) bool {
	var target *QuotaExhaustedError
	return errors.As(err, &target)
}

// RemoteUnavailableError wraps a network failure or a non-2xx response.
// Callers log it and treat the result as empty, it is never fatal.
type RemoteUnavailableError struct {
	Endpoint string
	Err      error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf(`marketplace API endpoint "%s" unavailable: %s`, e.Endpoint, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}
