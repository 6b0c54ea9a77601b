package tangle_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/qubiclite/iam/internal/tangle"
	"github.com/qubiclite/iam/pkg/trytes"
)

var ctx = context.Background()

var (
	addrA = strings.Repeat("A", trytes.AddressLength)
	addrB = strings.Repeat("B", trytes.AddressLength)
)

func TestMemoryTangle_submitAndFind(t *testing.T) {
	m := tangle.NewMemoryTangle()

	tx1, err := m.Submit(ctx, addrA, trytes.FromASCII("first"))
	if err != nil {
		t.Fatal(err)
	}
	tx2, err := m.Submit(ctx, addrA, trytes.FromASCII("second"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(ctx, addrB, trytes.FromASCII("other")); err != nil {
		t.Fatal(err)
	}

	if len(tx1.Payload) != trytes.MessageLength {
		t.Errorf("payload length: got %d, want %d", len(tx1.Payload), trytes.MessageLength)
	}
	if len(tx1.Hash) != trytes.HashLength {
		t.Errorf("hash length: got %d, want %d", len(tx1.Hash), trytes.HashLength)
	}
	if tx1.Hash == tx2.Hash {
		t.Error("distinct transactions share a hash")
	}

	got, err := m.FindByAddress(ctx, addrA)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions at address A, got %d", len(got))
	}
	if got[0].Hash != tx1.Hash || got[1].Hash != tx2.Hash {
		t.Error("transactions not returned in attach order")
	}

	n, _ := m.Len(ctx)
	if n != 3 {
		t.Errorf("Len(): got %d, want 3", n)
	}
}

func TestMemoryTangle_identicalPayloadsGetDistinctHashes(t *testing.T) {
	m := tangle.NewMemoryTangle()
	a, _ := m.Submit(ctx, addrA, trytes.FromASCII("same"))
	b, _ := m.Submit(ctx, addrA, trytes.FromASCII("same"))
	if a.Hash == b.Hash {
		t.Error("expected distinct hashes for repeated payloads")
	}
}

func TestMemoryTangle_get(t *testing.T) {
	m := tangle.NewMemoryTangle()
	tx, _ := m.Submit(ctx, addrA, trytes.FromASCII("x"))

	got, err := m.Get(ctx, tx.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != addrA {
		t.Errorf("Address: got %q, want %q", got.Address, addrA)
	}

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, tangle.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTangle_emptyAddress(t *testing.T) {
	m := tangle.NewMemoryTangle()
	got, err := m.FindByAddress(ctx, addrA)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no transactions, got %d", len(got))
	}
}

func TestMemoryTangle_submitRejectsInvalidInput(t *testing.T) {
	m := tangle.NewMemoryTangle()
	cases := []struct {
		name    string
		address string
		payload string
	}{
		{"short address", "ABC", ""},
		{"lowercase address", strings.Repeat("a", trytes.AddressLength), ""},
		{"oversized payload", addrA, strings.Repeat("9", trytes.MessageLength+1)},
		{"non-tryte payload", addrA, "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Submit(ctx, tc.address, tc.payload); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMemoryTangle_findReturnsCopies(t *testing.T) {
	m := tangle.NewMemoryTangle()
	_, _ = m.Submit(ctx, addrA, trytes.FromASCII("x"))

	got, _ := m.FindByAddress(ctx, addrA)
	got[0].Payload = "tampered"

	again, _ := m.FindByAddress(ctx, addrA)
	if again[0].Payload == "tampered" {
		t.Error("caller mutation leaked into the store")
	}
}
