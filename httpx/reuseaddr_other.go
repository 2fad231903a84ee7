//go:build !unix

package httpx

import "syscall"

func reuseAddrControl(network, address string, c syscall.RawConn) error { return nil }
