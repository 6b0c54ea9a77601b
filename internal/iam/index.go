package iam

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/qubiclite/iam/pkg/trytes"
	"golang.org/x/crypto/sha3"
)

// StatementKind tags an Index that belongs to an oracle statement stream.
// The zero value marks a plain index.
type StatementKind string

const (
	HashStatement   StatementKind = "hash_statement"
	ResultStatement StatementKind = "result_statement"
)

// Keyword returns the namespace used by indices of this kind.
func (k StatementKind) Keyword() string { return string(k) }

// Index identifies one slot in an IAM stream. Namespace separates unrelated
// streams sharing a position counter. Statement carries optional oracle
// metadata and never affects the derived address.
type Index struct {
	Namespace string
	Position  uint64
	Statement StatementKind
}

// NewIndex returns a plain index.
func NewIndex(namespace string, position uint64) Index {
	return Index{Namespace: namespace, Position: position}
}

// NewStatementIndex returns the index of a statement of the given kind
// published in epoch.
func NewStatementIndex(kind StatementKind, epoch uint64) Index {
	return Index{Namespace: kind.Keyword(), Position: epoch, Statement: kind}
}

// StatementKindOf returns the statement kind whose keyword is namespace.
func StatementKindOf(namespace string) (StatementKind, bool) {
	switch k := StatementKind(namespace); k {
	case HashStatement, ResultStatement:
		return k, true
	}
	return "", false
}

// IndexFor returns the index at namespace/position. Namespaces that are a
// statement keyword yield a statement index for epoch position.
func IndexFor(namespace string, position uint64) Index {
	if kind, ok := StatementKindOf(namespace); ok {
		return NewStatementIndex(kind, position)
	}
	return NewIndex(namespace, position)
}

// Epoch returns the position of a statement index.
func (i Index) Epoch() uint64 { return i.Position }

// IsStatement reports whether the index carries statement metadata.
func (i Index) IsStatement() bool { return i.Statement != "" }

// String returns "namespace/position".
func (i Index) String() string {
	return fmt.Sprintf("%s/%d", i.Namespace, i.Position)
}

// AddressFunc maps an index to the Tangle address its packets live at.
// Implementations must be deterministic.
type AddressFunc func(Index) string

// StreamAddresser returns the AddressFunc of the stream identified by
// streamID (typically the publisher's public key or root address). The
// address is the SHA3-384 digest of the length-prefixed stream id,
// namespace and position, rendered as 81 trytes.
func StreamAddresser(streamID string) AddressFunc {
	return func(idx Index) string {
		h := sha3.New384()
		writeField(h, streamID)
		writeField(h, idx.Namespace)
		var pos [8]byte
		binary.BigEndian.PutUint64(pos[:], idx.Position)
		h.Write(pos[:])
		return trytes.FromBytes(h.Sum(nil), trytes.AddressLength)
	}
}

func writeField(h io.Writer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
