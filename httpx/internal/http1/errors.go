package http1

import "github.com/pkg/errors"

var (
	ErrChunkFormat  = errors.New("http1: invalid chunk format")
	ErrLineTooLong  = errors.New("http1: line too long")
	ErrNotSupported = errors.New("http1: operation not supported")
)
