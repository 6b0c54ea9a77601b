package iam

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionReused is returned when Assemble is called more than once
	// on the same Assembler.
	ErrSessionReused = errors.New("iam: assembler session already used")

	// ErrNoSource is returned when an Assembler has neither a batch nor a
	// fetcher to obtain one.
	ErrNoSource = errors.New("iam: no batch supplied and no fetcher configured")

	// ErrMalformedPacket is wrapped by ParsePacket failures.
	ErrMalformedPacket = errors.New("iam: malformed packet")

	// ErrPacketTooLarge is returned by the publisher when a packet needs
	// more fragments than allowed.
	ErrPacketTooLarge = errors.New("iam: packet exceeds fragment limit")
)

// FetchError reports that the candidate batch for an address could not be
// fetched. The underlying ledger error is available through errors.Is/As.
type FetchError struct {
	Address string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("iam: fetch candidates at %s: %v", e.Address, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
