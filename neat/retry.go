package neat

import (
	"errors"
	"fmt"
)

// errRejected is returned by a retry attempt whose random pick was unusable.
var errRejected = errors.New("candidate rejected")

// retry calls fn until it succeeds, fails with an error other than errRejected, or
// attempts run out. Running out yields ErrRetryExhausted.
func retry(attempts int, fn func() error) error {
	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, errRejected) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, ErrRetryExhausted)
}
