package risk

import (
	"errors"
	"fmt"
)

// ErrInvalidCapital marks an account whose initial capital cannot be used
// as a percentage baseline.
var ErrInvalidCapital = errors.New("initial capital must be positive")

// ConfigError is a fatal configuration problem found while evaluating an account.
type ConfigError struct {
	AccountID string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("risk configuration error for account %s: %v", e.AccountID, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
