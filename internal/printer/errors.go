package printer

import "github.com/chaz8081/fichero/internal/ble/protocol"

// Error classes. Every class matches ErrPrinter under errors.Is.
const (
	ErrPrinter         = protocol.ErrPrinter
	ErrInvalidArgument = protocol.ErrInvalidArgument
	ErrNotFound        = protocol.ErrNotFound
	ErrNotReady        = protocol.ErrNotReady
	ErrTimeout         = protocol.ErrTimeout
)
