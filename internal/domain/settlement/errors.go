package settlement

import "errors"

var (
	ErrExitNotFound      = errors.New("exit record not found")
	ErrExitAlreadyExists = errors.New("staff already has an open exit record")
	ErrExitNotFinalized  = errors.New("exit settlement is not finalized yet")
)
