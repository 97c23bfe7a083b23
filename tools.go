//go:build tools
// +build tools

// Package tools pins the code generators used by `go generate` (mockgen for
// the mocks of contract/contract.go) as explicit module dependencies.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
