package coreiface

import (
	"errors"
	"fmt"
)

var (
	// ErrInternalServer may be included in the error wrapper to signal that the error
	// was generated exclusively due to a server side error and not bad input data.
	ErrInternalServer = errors.New("internal server error")

	// ErrBadRequest is included in the error wrapper when the error was generated
	// due to bad input data.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is included in the error wrapper when the error was generated
	// due to a requested asset not being found.
	ErrNotFound = errors.New("not found")

	// ErrConflict is included in the error wrapper when the request clashes
	// with the current state, such as a second signature from the same signer.
	ErrConflict = errors.New("conflict")

	// ErrBadGateway is included in the error wrapper when the bitcoin node
	// refused or failed a request.
	ErrBadGateway = errors.New("bitcoin node error")

	// ErrNoWallet is returned when no key file or commitment exists yet.
	ErrNoWallet = errors.New("wallet not initialized")

	// ErrWalletExists is returned by init when a key file already exists.
	ErrWalletExists = errors.New("wallet already initialized")

	// ErrLocked is returned when the key file is sealed and no passphrase
	// was provided.
	ErrLocked = errors.New("key file is sealed with a passphrase")
)

// Wrap tags err with one of the category errors above. errors.Is matches
// both the category and any error err wraps.
func Wrap(kind, err error) error {
	return &categorized{kind: kind, err: err}
}

type categorized struct {
	kind error
	err  error
}

func (c *categorized) Error() string {
	return fmt.Sprintf("%s: %s", c.kind, c.err)
}

func (c *categorized) Unwrap() error {
	return c.err
}

func (c *categorized) Is(target error) bool {
	return target == c.kind
}
