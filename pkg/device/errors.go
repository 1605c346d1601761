package device

// Error is a device error kind. Errors returned by the device and the
// acquisition layer wrap one of these so callers can use errors.Is.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrAcquisitionTimeout = Error("acquisition timeout")
	ErrHardwareFault      = Error("hardware fault")
	ErrNotConnected       = Error("not connected")
	ErrAlreadyConnected   = Error("already connected")
)
