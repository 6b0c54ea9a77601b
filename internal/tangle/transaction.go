package tangle

import (
	"encoding/binary"
	"time"

	"github.com/qubiclite/iam/pkg/trytes"
	"golang.org/x/crypto/sha3"
)

// Transaction is a single fixed-capacity record attached to the Tangle.
type Transaction struct {
	Hash       string    `json:"hash"`
	Address    string    `json:"address"`
	Payload    string    `json:"payload"` // trytes.MessageLength trytes
	AttachedAt time.Time `json:"attached_at"`
}

// hashTransaction derives a deterministic 81-tryte hash for a transaction
// stored at address with the given payload. seq distinguishes otherwise
// identical payloads attached at the same address.
func hashTransaction(address, payload string, seq uint64) string {
	h := sha3.New384()
	h.Write([]byte(address))
	h.Write([]byte{'|'})
	h.Write([]byte(payload))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	h.Write(buf[:])
	return trytes.FromBytes(h.Sum(nil), trytes.HashLength)
}

// normalizePayload pads a payload to the full message width.
func normalizePayload(payload string) string {
	return trytes.Pad(payload, trytes.MessageLength)
}
