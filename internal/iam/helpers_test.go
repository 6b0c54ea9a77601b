package iam_test

import (
	"context"
	"strings"
	"testing"

	"github.com/qubiclite/iam/internal/iam"
	"github.com/qubiclite/iam/internal/tangle"
	"github.com/qubiclite/iam/pkg/trytes"
)

var ctx = context.Background()

// hashOf returns a fixed-width hash built from an uppercase label.
func hashOf(label string) string {
	return trytes.Pad(label, trytes.HashLength)
}

// txOf builds a candidate transaction carrying text.
func txOf(hash, text string) tangle.Transaction {
	return tangle.Transaction{
		Hash:    hash,
		Payload: trytes.Pad(trytes.FromASCII(text), trytes.MessageLength),
	}
}

// chainOf splits text into a root plus n continuation fragments whose hashes
// are derived from label, and returns the root followed by the fragments.
func chainOf(label, text string, n int) []tangle.Transaction {
	size := len(text) / (n + 1)
	first := text[:size]
	remaining := text[size:]

	var hashes []string
	var frags []tangle.Transaction
	for i := 0; i < n; i++ {
		part := remaining
		if i < n-1 {
			part = remaining[:size]
			remaining = remaining[size:]
		}
		h := hashOf(label + strings.Repeat("Z", i+1))
		hashes = append(hashes, h)
		frags = append(frags, txOf(h, part))
	}
	root := txOf(hashOf(label), iam.EncodeFragments(first, hashes))
	return append([]tangle.Transaction{root}, frags...)
}

func assemble(t *testing.T, batch []tangle.Transaction, opts ...iam.Option) []iam.Packet {
	t.Helper()
	opts = append([]iam.Option{iam.WithBatch(batch)}, opts...)
	packets, err := iam.NewAssembler(iam.NewIndex("ns", 1), iam.AcceptAll, opts...).Assemble(ctx)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return packets
}

func messageValue(t *testing.T, p iam.Packet, key string) string {
	t.Helper()
	v, ok := p.Message()[key]
	if !ok {
		t.Fatalf("message has no %q field", key)
	}
	return toString(v)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case interface{ String() string }:
		return x.String()
	default:
		return ""
	}
}
