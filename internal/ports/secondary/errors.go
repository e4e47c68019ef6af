package secondary

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories. Callers check with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// ProbeError reports a failed liveness probe (dial failure, timeout, bad reply).
// It drives the debounce counter and never escapes a tick.
type ProbeError struct {
	Address string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Address, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// DeliveryError reports a failed send. Permanent errors mean the recipient can
// never be reached again (for example the bot was blocked).
type DeliveryError struct {
	Handle    string
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s delivery failure to %s: %v", kind, e.Handle, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsPermanentDelivery reports whether err carries a permanent DeliveryError.
// Any other error is treated as transient.
func IsPermanentDelivery(err error) bool {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Permanent
	}
	return false
}
