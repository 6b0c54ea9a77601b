package iam_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/qubiclite/iam/internal/iam"
	"github.com/qubiclite/iam/internal/tangle"
	"github.com/qubiclite/iam/pkg/trytes"
)

func TestAssemble_singleUnchainedFragment(t *testing.T) {
	batch := []tangle.Transaction{txOf(hashOf("A"), `{"signature":"S1","message":{"v":1}}`)}

	packets := assemble(t, batch)
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	if packets[0].Signature() != "S1" {
		t.Errorf("Signature(): got %q, want %q", packets[0].Signature(), "S1")
	}
	if got := messageValue(t, packets[0], "v"); got != "1" {
		t.Errorf("message.v: got %q, want %q", got, "1")
	}
}

func TestAssemble_hashBlockChain(t *testing.T) {
	x, y := hashOf("X"), hashOf("Y")
	batch := []tangle.Transaction{
		txOf(hashOf("B"), `{"h":"`+x+y+`"}{"sig`),
		txOf(x, `nature":"S2",`),
		txOf(y, `"message":{"v":2}}`),
	}

	packets := assemble(t, batch)
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	if packets[0].Signature() != "S2" {
		t.Errorf("Signature(): got %q, want %q", packets[0].Signature(), "S2")
	}
	if got := messageValue(t, packets[0], "v"); got != "2" {
		t.Errorf("message.v: got %q, want %q", got, "2")
	}
}

func TestAssemble_fragmentOrderFollowsHashBlock(t *testing.T) {
	x, y := hashOf("X"), hashOf("Y")
	// Fragments appear in the batch before the root and in reverse order.
	batch := []tangle.Transaction{
		txOf(y, `"message":{"v":2}}`),
		txOf(x, `nature":"S2",`),
		txOf(hashOf("B"), `{"h":"`+x+y+`"}{"sig`),
	}
	if packets := assemble(t, batch); len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
}

func TestAssemble_sizeBoundary(t *testing.T) {
	text := `{"signature":"SIG","message":{"payload":"` + strings.Repeat("q", 40) + `"}}`

	t.Run("five fragments accepted", func(t *testing.T) {
		packets := assemble(t, chainOf("FIVE", text, 4), iam.WithMaxFragments(5))
		if len(packets) != 1 {
			t.Fatalf("expected 1 packet, got %d", len(packets))
		}
	})

	t.Run("six fragments rejected, other candidates unaffected", func(t *testing.T) {
		batch := chainOf("SIX", text, 5)
		batch = append(batch, txOf(hashOf("OK"), `{"signature":"S","message":{"ok":true}}`))
		batch = append(batch, chainOf("ALSO", text, 2)...)

		packets := assemble(t, batch, iam.WithMaxFragments(5))
		if len(packets) != 2 {
			t.Fatalf("expected 2 packets, got %d", len(packets))
		}
		if packets[0].Signature() != "S" {
			t.Errorf("first packet: got signature %q, want %q", packets[0].Signature(), "S")
		}
		if packets[1].Signature() != "SIG" {
			t.Errorf("second packet: got signature %q, want %q", packets[1].Signature(), "SIG")
		}
	})
}

func TestAssemble_defaultFragmentLimit(t *testing.T) {
	text := `{"signature":"SIG","message":{"payload":"` + strings.Repeat("q", 40) + `"}}`
	if packets := assemble(t, chainOf("OVER", text, iam.MaxFragmentsPerPacket)); len(packets) != 0 {
		t.Errorf("expected chain of %d fragments to be rejected, got %d packets", iam.MaxFragmentsPerPacket+1, len(packets))
	}
}

func TestAssemble_missingFragment(t *testing.T) {
	x, y := hashOf("X"), hashOf("Y")
	batch := []tangle.Transaction{
		txOf(hashOf("B"), `{"h":"`+x+y+`"}{"sig`),
		txOf(x, `nature":"S2",`),
		// y is absent from the batch.
		txOf(hashOf("OK"), `{"signature":"S1","message":{"v":1}}`),
	}

	packets := assemble(t, batch)
	if len(packets) != 1 {
		t.Fatalf("expected only the complete packet, got %d", len(packets))
	}
	if packets[0].Signature() != "S1" {
		t.Errorf("unexpected packet with signature %q", packets[0].Signature())
	}
}

func TestAssemble_missingFragmentEvenIfTextWouldParse(t *testing.T) {
	// The missing fragment would contribute nothing needed for valid JSON;
	// the chain is still rejected rather than exposing a partial packet.
	x := hashOf("X")
	batch := []tangle.Transaction{
		txOf(hashOf("B"), `{"h":"`+x+`"}{"signature":"S","message":{"v":1}}`),
	}
	if packets := assemble(t, batch); len(packets) != 0 {
		t.Errorf("expected incomplete chain to be rejected, got %d packets", len(packets))
	}
}

func TestAssemble_malformedJSON(t *testing.T) {
	batch := []tangle.Transaction{
		txOf(hashOf("BAD"), `{"signature":"S0","message":`),
		txOf(hashOf("NOSIG"), `{"message":{"v":0}}`),
		txOf(hashOf("NULLSIG"), `{"signature":null,"message":{"v":0}}`),
		txOf(hashOf("NUMSIG"), `{"signature":7,"message":{"v":0}}`),
		txOf(hashOf("OK"), `{"signature":"S1","message":{"v":1}}`),
		txOf(hashOf("JUNK"), `just some text`),
	}
	packets := assemble(t, batch)
	if len(packets) != 1 || packets[0].Signature() != "S1" {
		t.Fatalf("expected only S1, got %d packets", len(packets))
	}
}

func TestAssemble_undecodablePayload(t *testing.T) {
	batch := []tangle.Transaction{
		{Hash: hashOf("RAW"), Payload: "not trytes at all"},
		txOf(hashOf("OK"), `{"signature":"S1","message":{"v":1}}`),
	}
	if packets := assemble(t, batch); len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
}

func TestAssemble_preservesBatchOrderAndDuplicates(t *testing.T) {
	batch := []tangle.Transaction{
		txOf(hashOf("C"), `{"signature":"S3","message":{"v":3}}`),
		txOf(hashOf("A"), `{"signature":"S1","message":{"v":1}}`),
		txOf(hashOf("B"), `{"signature":"S2","message":{"v":1}}`),
	}
	packets := assemble(t, batch)
	if len(packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(packets))
	}
	for i, want := range []string{"S3", "S1", "S2"} {
		if packets[i].Signature() != want {
			t.Errorf("packet %d: got %q, want %q", i, packets[i].Signature(), want)
		}
	}
	if !packets[1].Equal(packets[2]) {
		t.Error("packets with the same message should compare equal")
	}
}

func TestAssemble_deterministic(t *testing.T) {
	text := `{"signature":"SIG","message":{"payload":"` + strings.Repeat("r", 30) + `"}}`
	batch := chainOf("D", text, 3)
	batch = append(batch, txOf(hashOf("OK"), `{"signature":"S1","message":{"v":1}}`))

	first := assemble(t, batch)
	second := assemble(t, batch)
	if len(first) != len(second) {
		t.Fatalf("result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) || first[i].Signature() != second[i].Signature() {
			t.Errorf("packet %d differs between sessions", i)
		}
	}
}

func TestAssemble_validatorFilters(t *testing.T) {
	batch := []tangle.Transaction{
		txOf(hashOf("A"), `{"signature":"good","message":{"v":1}}`),
		txOf(hashOf("B"), `{"signature":"bad","message":{"v":2}}`),
	}
	idx := iam.NewIndex("ns", 7)
	var seen []iam.Index
	v := iam.ValidatorFunc(func(i iam.Index, p iam.Packet) bool {
		seen = append(seen, i)
		return p.Signature() == "good"
	})

	packets, err := iam.NewAssembler(idx, v, iam.WithBatch(batch)).Assemble(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 || packets[0].Signature() != "good" {
		t.Fatalf("expected only the good packet, got %d", len(packets))
	}
	for _, i := range seen {
		if i != idx {
			t.Errorf("validator called with %v, want %v", i, idx)
		}
	}
}

func TestAssemble_nilValidatorRejects(t *testing.T) {
	batch := []tangle.Transaction{txOf(hashOf("A"), `{"signature":"S","message":{}}`)}
	packets, err := iam.NewAssembler(iam.NewIndex("ns", 0), nil, iam.WithBatch(batch)).Assemble(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 0 {
		t.Errorf("expected no packets without a validator, got %d", len(packets))
	}
}

func TestAssemble_emptyBatch(t *testing.T) {
	packets, err := iam.NewAssembler(iam.NewIndex("ns", 0), iam.AcceptAll, iam.WithBatch(nil)).Assemble(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 0 {
		t.Errorf("expected no packets, got %d", len(packets))
	}
}

func TestAssemble_singleUse(t *testing.T) {
	batch := []tangle.Transaction{txOf(hashOf("A"), `{"signature":"S1","message":{"v":1}}`)}
	a := iam.NewAssembler(iam.NewIndex("ns", 1), iam.AcceptAll, iam.WithBatch(batch))

	first, err := a.Assemble(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Assemble(ctx); !errors.Is(err, iam.ErrSessionReused) {
		t.Errorf("second call: got %v, want ErrSessionReused", err)
	}
	if len(first) != 1 || first[0].Signature() != "S1" {
		t.Error("first result changed after reuse attempt")
	}
}

func TestAssemble_singleUseAcrossGoroutines(t *testing.T) {
	a := iam.NewAssembler(iam.NewIndex("ns", 1), iam.AcceptAll, iam.WithBatch(nil))

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Assemble(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, reused := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, iam.ErrSessionReused):
			reused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || reused != callers-1 {
		t.Errorf("got %d successes and %d reuse errors, want 1 and %d", ok, reused, callers-1)
	}
}

func TestAssemble_fetchesWhenNoBatch(t *testing.T) {
	m := tangle.NewMemoryTangle()
	addressOf := iam.StreamAddresser("stream")
	idx := iam.NewIndex("ns", 3)

	if _, err := m.Submit(ctx, addressOf(idx), trytes.FromASCII(`{"signature":"S1","message":{"v":1}}`)); err != nil {
		t.Fatal(err)
	}
	// A packet at a neighbouring position must not leak in.
	if _, err := m.Submit(ctx, addressOf(iam.NewIndex("ns", 4)), trytes.FromASCII(`{"signature":"S2","message":{"v":2}}`)); err != nil {
		t.Fatal(err)
	}

	packets, err := iam.NewAssembler(idx, iam.AcceptAll, iam.WithFetcher(m, addressOf)).Assemble(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 || packets[0].Signature() != "S1" {
		t.Fatalf("expected packet S1, got %d packets", len(packets))
	}
}

type failingFetcher struct{ err error }

func (f failingFetcher) FindByAddress(context.Context, string) ([]tangle.Transaction, error) {
	return nil, f.err
}

func TestAssemble_fetchFailurePropagates(t *testing.T) {
	cause := errors.New("node unreachable")
	addressOf := iam.StreamAddresser("stream")
	idx := iam.NewIndex("ns", 1)

	_, err := iam.NewAssembler(idx, iam.AcceptAll, iam.WithFetcher(failingFetcher{cause}, addressOf)).Assemble(ctx)
	if !errors.Is(err, cause) {
		t.Fatalf("expected the fetch cause, got %v", err)
	}
	var fe *iam.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Address != addressOf(idx) {
		t.Errorf("FetchError.Address: got %q, want %q", fe.Address, addressOf(idx))
	}
}

func TestAssemble_noSource(t *testing.T) {
	_, err := iam.NewAssembler(iam.NewIndex("ns", 1), iam.AcceptAll).Assemble(ctx)
	if !errors.Is(err, iam.ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}
