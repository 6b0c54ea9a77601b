package tangle

import (
	"context"
	"errors"
	"fmt"

	"github.com/qubiclite/iam/pkg/trytes"
)

// ErrNotFound is returned by Get when no transaction has the requested hash.
var ErrNotFound = errors.New("tangle: transaction not found")

// Fetcher returns every transaction attached at an address.
type Fetcher interface {
	FindByAddress(ctx context.Context, address string) ([]Transaction, error)
}

// Submitter attaches a message to the Tangle at an address.
type Submitter interface {
	Submit(ctx context.Context, address, payload string) (*Transaction, error)
}

// Client is a ledger client that can both read and attach transactions.
type Client interface {
	Fetcher
	Submitter
}

// validateSubmit checks the address and payload of a Submit call.
func validateSubmit(address, payload string) error {
	if len(address) != trytes.AddressLength || !trytes.Valid(address) {
		return fmt.Errorf("invalid address %q", address)
	}
	if len(payload) > trytes.MessageLength {
		return fmt.Errorf("payload of %d trytes exceeds %d", len(payload), trytes.MessageLength)
	}
	if !trytes.Valid(payload) {
		return fmt.Errorf("payload contains non-tryte characters")
	}
	return nil
}
