package iam

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qubiclite/iam/internal/tangle"
	"github.com/qubiclite/iam/pkg/trytes"
	"go.uber.org/zap"
)

// Validator authenticates a reassembled packet against the index it was
// found at.
type Validator interface {
	IsValid(index Index, packet Packet) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(Index, Packet) bool

// IsValid implements Validator.
func (f ValidatorFunc) IsValid(index Index, packet Packet) bool { return f(index, packet) }

// AcceptAll is a Validator that accepts every structurally valid packet.
var AcceptAll Validator = ValidatorFunc(func(Index, Packet) bool { return true })

const (
	sessionFresh int32 = iota
	sessionSpent
)

// Option configures an Assembler.
type Option func(*Assembler)

// WithBatch supplies the candidate batch, skipping the fetch. A nil or empty
// batch is still a supplied batch.
func WithBatch(batch []tangle.Transaction) Option {
	return func(a *Assembler) {
		a.batch = batch
		a.hasBatch = true
	}
}

// WithFetcher sets the ledger client and address derivation used when no
// batch is supplied.
func WithFetcher(f tangle.Fetcher, addressOf AddressFunc) Option {
	return func(a *Assembler) {
		a.fetcher = f
		a.addressOf = addressOf
	}
}

// WithMaxFragments overrides MaxFragmentsPerPacket.
func WithMaxFragments(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxFragments = n
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assembler reconstructs every valid packet at one index. It is a
// single-use session: the first Assemble call scans the batch, every later
// call (from any goroutine) fails with ErrSessionReused.
type Assembler struct {
	index        Index
	validator    Validator
	batch        []tangle.Transaction
	hasBatch     bool
	fetcher      tangle.Fetcher
	addressOf    AddressFunc
	maxFragments int
	logger       *zap.Logger

	state atomic.Int32
}

// NewAssembler creates a session for index whose packets are checked by v.
func NewAssembler(index Index, v Validator, opts ...Option) *Assembler {
	a := &Assembler{
		index:        index,
		validator:    v,
		maxFragments: MaxFragmentsPerPacket,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(
		zap.String("session", uuid.NewString()),
		zap.String("index", index.String()),
	)
	return a
}

// Assemble returns the valid packets in batch order. Per-candidate problems
// (malformed data, oversized or incomplete chains, failed validation) only
// exclude that candidate. The returned error is ErrSessionReused,
// ErrNoSource, or a *FetchError.
func (a *Assembler) Assemble(ctx context.Context) ([]Packet, error) {
	if !a.state.CompareAndSwap(sessionFresh, sessionSpent) {
		return nil, ErrSessionReused
	}
	start := time.Now()
	defer func() { iamAssembleDuration.Observe(time.Since(start).Seconds()) }()

	batch, err := a.candidates(ctx)
	if err != nil {
		iamAssembliesTotal.WithLabelValues("fetch_error").Inc()
		return nil, err
	}

	byHash := make(map[string]tangle.Transaction, len(batch))
	for _, tx := range batch {
		if _, dup := byHash[tx.Hash]; !dup {
			byHash[tx.Hash] = tx
		}
	}

	packets := make([]Packet, 0, 1)
	for _, tx := range batch {
		p, out := a.assembleCandidate(tx, byHash)
		iamCandidatesTotal.WithLabelValues(string(out)).Inc()
		if out != outcomeAccepted {
			a.logger.Debug("candidate rejected",
				zap.String("tx", tx.Hash),
				zap.String("reason", string(out)),
			)
			continue
		}
		packets = append(packets, p)
	}

	iamAssembliesTotal.WithLabelValues("ok").Inc()
	a.logger.Debug("assembly finished",
		zap.Int("candidates", len(batch)),
		zap.Int("packets", len(packets)),
	)
	return packets, nil
}

// candidates returns the supplied batch or fetches it once.
func (a *Assembler) candidates(ctx context.Context) ([]tangle.Transaction, error) {
	if a.hasBatch {
		return a.batch, nil
	}
	if a.fetcher == nil || a.addressOf == nil {
		return nil, ErrNoSource
	}
	address := a.addressOf(a.index)
	batch, err := a.fetcher.FindByAddress(ctx, address)
	if err != nil {
		return nil, &FetchError{Address: address, Err: err}
	}
	return batch, nil
}

// assembleCandidate treats root as the start of a fragment chain.
func (a *Assembler) assembleCandidate(root tangle.Transaction, byHash map[string]tangle.Transaction) (Packet, outcome) {
	text, err := trytes.DecodeMessage(root.Payload)
	if err != nil {
		return Packet{}, outcomeUndecodable
	}

	hashes, first := SplitHashBlock(text)
	if len(hashes)+1 > a.maxFragments {
		a.logger.Warn("oversized fragment chain",
			zap.String("tx", root.Hash),
			zap.Int("fragments", len(hashes)+1),
			zap.Int("max", a.maxFragments),
		)
		return Packet{}, outcomeOversized
	}

	var full strings.Builder
	full.WriteString(first)
	for _, h := range hashes {
		frag, ok := byHash[h]
		if !ok {
			return Packet{}, outcomeIncompleteChain
		}
		part, err := trytes.DecodeMessage(frag.Payload)
		if err != nil {
			return Packet{}, outcomeUndecodable
		}
		full.WriteString(part)
	}

	p, err := ParsePacket(full.String())
	if err != nil {
		return Packet{}, outcomeMalformed
	}
	if a.validator == nil || !a.validator.IsValid(a.index, p) {
		return Packet{}, outcomeInvalid
	}
	return p, outcomeAccepted
}
