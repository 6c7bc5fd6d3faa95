package authn

import "errors"

var (
	// ErrUnauthenticated covers every token or credential problem.
	ErrUnauthenticated = errors.New("authn: unauthenticated")

	// ErrForbidden is returned when the principal lacks a required role.
	ErrForbidden = errors.New("authn: forbidden")
)

// UnauthenticatedError keeps the verifier's reason for logs. Callers match
// it with errors.Is(err, ErrUnauthenticated) and must never show Reason to
// the client.
type UnauthenticatedError struct {
	Reason error
}

func (e *UnauthenticatedError) Error() string {
	if e.Reason == nil {
		return ErrUnauthenticated.Error()
	}
	return ErrUnauthenticated.Error() + ": " + e.Reason.Error()
}

func (e *UnauthenticatedError) Is(target error) bool { return target == ErrUnauthenticated }

func (e *UnauthenticatedError) Unwrap() error { return e.Reason }

func unauthenticated(reason error) error {
	return &UnauthenticatedError{Reason: reason}
}
