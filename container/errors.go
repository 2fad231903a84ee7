package container

import "github.com/pkg/errors"

var (
	ErrNoSuchItem = errors.New("container: no such item")
)
