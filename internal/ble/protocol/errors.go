package protocol

// Error is a printer failure class. Every class other than ErrPrinter also
// matches ErrPrinter under errors.Is, so callers can test for "any printer
// error" or for one specific class.
type Error string

func (e Error) Error() string { return string(e) }

// Is reports whether target is the base class.
func (e Error) Is(target error) bool {
	return target == ErrPrinter
}

const (
	// ErrPrinter is the base class: general protocol violations and
	// malformed frame construction.
	ErrPrinter Error = "printer error"
	// ErrInvalidArgument marks a value outside a command's domain. It is
	// always raised before any transport I/O.
	ErrInvalidArgument Error = "invalid argument"
	// ErrNotFound marks a connect that reached no device.
	ErrNotFound Error = "printer not found"
	// ErrNotReady marks a print job refused by the pre-job status check.
	ErrNotReady Error = "printer not ready"
	// ErrTimeout marks a notification wait that expired.
	ErrTimeout Error = "printer timeout"
)
