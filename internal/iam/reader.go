package iam

import (
	"context"

	"github.com/qubiclite/iam/internal/tangle"
	"go.uber.org/zap"
)

// ReaderConfig holds the collaborators of a Reader.
type ReaderConfig struct {
	Fetcher      tangle.Fetcher
	AddressFunc  AddressFunc
	Validator    Validator
	MaxFragments int // 0 means MaxFragmentsPerPacket
}

// Reader reads packets from one IAM stream. Every call runs its own
// Assembler session, so a Reader is safe for concurrent use as long as its
// collaborators are.
type Reader struct {
	cfg    ReaderConfig
	logger *zap.Logger
}

// NewReader creates a Reader.
func NewReader(cfg ReaderConfig, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{cfg: cfg, logger: logger}
}

// Address returns the address packets at index are published to.
func (r *Reader) Address(index Index) string {
	return r.cfg.AddressFunc(index)
}

// Read fetches the candidates at index and returns every valid packet.
func (r *Reader) Read(ctx context.Context, index Index) ([]Packet, error) {
	return r.session(index, WithFetcher(r.cfg.Fetcher, r.cfg.AddressFunc)).Assemble(ctx)
}

// ReadBatch assembles packets at index from a batch the caller already holds.
func (r *Reader) ReadBatch(ctx context.Context, index Index, batch []tangle.Transaction) ([]Packet, error) {
	return r.session(index, WithBatch(batch)).Assemble(ctx)
}

func (r *Reader) session(index Index, source Option) *Assembler {
	return NewAssembler(index, r.cfg.Validator,
		source,
		WithMaxFragments(r.cfg.MaxFragments),
		WithLogger(r.logger),
	)
}
