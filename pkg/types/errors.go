package types

import "fmt"

// DistributionError carries one of the abstract error kinds from spec.md §7
// alongside a human-readable message, so callers can both branch on Cause and
// log/propagate Error() directly.
type DistributionError struct {
	Cause   ConnectionFailureCause
	Message string
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cause, e.Message)
}

// NewDistributionError builds a DistributionError with a formatted message.
func NewDistributionError(cause ConnectionFailureCause, format string, args ...any) *DistributionError {
	return &DistributionError{Cause: cause, Message: fmt.Sprintf(format, args...)}
}

// Well-known step-level failure kinds (§7) that are not connection failures.
var (
	ErrVerifySourceFilesFailed = fmt.Errorf("verify source files failed")
	ErrConnectionLost          = fmt.Errorf("connection lost / no result received")
)
