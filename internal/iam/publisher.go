package iam

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qubiclite/iam/internal/tangle"
	"github.com/qubiclite/iam/pkg/trytes"
	"go.uber.org/zap"
)

// Signer produces the signature attached to a packet published at index.
type Signer interface {
	Sign(index Index, packet Packet) (string, error)
}

// PublisherConfig holds the collaborators of a Publisher.
type PublisherConfig struct {
	Submitter    tangle.Submitter
	AddressFunc  AddressFunc
	Signer       Signer
	MaxFragments int // 0 means MaxFragmentsPerPacket
}

// Publication describes the transactions attached for one packet.
type Publication struct {
	Address   string               `json:"address"`
	Root      tangle.Transaction   `json:"root"`
	Fragments []tangle.Transaction `json:"fragments"`
}

// Publisher writes signed packets to an IAM stream.
type Publisher struct {
	cfg    PublisherConfig
	logger *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(cfg PublisherConfig, logger *zap.Logger) *Publisher {
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = MaxFragmentsPerPacket
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Publish signs message, splits the packet into fragments and attaches
// them at the address of index. Continuation fragments are attached first
// so that the root can reference their hashes.
func (p *Publisher) Publish(ctx context.Context, index Index, message map[string]any) (*Publication, error) {
	unsigned, err := NewPacket(message, "")
	if err != nil {
		return nil, err
	}
	signature, err := p.cfg.Signer.Sign(index, unsigned)
	if err != nil {
		return nil, fmt.Errorf("sign packet: %w", err)
	}
	signed, err := NewPacket(unsigned.Message(), signature)
	if err != nil {
		return nil, err
	}
	text, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("marshal packet: %w", err)
	}

	first, rest, err := SplitFragments(string(text), p.cfg.MaxFragments)
	if err != nil {
		return nil, err
	}

	address := p.cfg.AddressFunc(index)
	pub := &Publication{Address: address}
	hashes := make([]string, 0, len(rest))
	for i, frag := range rest {
		tx, err := p.cfg.Submitter.Submit(ctx, address, trytes.FromASCII(frag))
		if err != nil {
			return nil, fmt.Errorf("attach fragment %d: %w", i+1, err)
		}
		hashes = append(hashes, tx.Hash)
		pub.Fragments = append(pub.Fragments, *tx)
	}

	root, err := p.cfg.Submitter.Submit(ctx, address, trytes.FromASCII(EncodeFragments(first, hashes)))
	if err != nil {
		return nil, fmt.Errorf("attach root: %w", err)
	}
	pub.Root = *root
	iamPublishedFragmentsTotal.Add(float64(len(rest) + 1))

	p.logger.Info("packet published",
		zap.String("index", index.String()),
		zap.String("address", address),
		zap.String("root", root.Hash),
		zap.Int("fragments", len(rest)+1),
	)
	return pub, nil
}

// SplitFragments plans how text is spread over transactions. It returns the
// text carried by the root (after its hash block) and the texts of the
// continuation fragments, using as few fragments as possible. The root's
// hash block grows by one hash per continuation fragment.
func SplitFragments(text string, maxFragments int) (first string, rest []string, err error) {
	for n := 0; n+1 <= maxFragments; n++ {
		rootCap := trytes.MessageCapacity - hashBlockLength(n)
		if rootCap < 0 {
			break
		}
		if len(text) > rootCap+n*trytes.MessageCapacity {
			continue
		}
		if len(text) <= rootCap {
			return text, nil, nil
		}
		first, remaining := text[:rootCap], text[rootCap:]
		for len(remaining) > 0 {
			size := min(len(remaining), trytes.MessageCapacity)
			rest = append(rest, remaining[:size])
			remaining = remaining[size:]
		}
		return first, rest, nil
	}
	return "", nil, fmt.Errorf("%w: %d characters, at most %d fragments", ErrPacketTooLarge, len(text), maxFragments)
}

// EncodeFragments renders the root text for a chain whose continuation
// fragments have the given hashes.
func EncodeFragments(first string, hashes []string) string {
	return encodeHashBlock(hashes) + first
}
