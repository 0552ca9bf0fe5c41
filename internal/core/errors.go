package core

import "errors"

// Domain errors. The web layer maps each to a status code and MapError
// turns their messages into user-facing text.
var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrForbidden          = errors.New("admin privileges required")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrInvalidChart       = errors.New("invalid chart")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrFileMissing        = errors.New("file not found on server")
)

// NotFoundError names the missing resource while still matching ErrNotFound.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(resource string) error {
	return &NotFoundError{Resource: resource}
}
