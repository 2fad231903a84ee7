package uri

import "github.com/pkg/errors"

var (
	ErrInvalidSyntax     = errors.New("uri: invalid syntax")
	ErrInvalidParameters = errors.New("uri: invalid parameters")
)
