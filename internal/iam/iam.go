// Package iam implements the Information Access Mechanism: authenticated
// message streams stored on the Tangle.
//
// A publisher writes a packet at the address derived from an Index. Packets
// larger than one transaction are split into fragments; the root fragment
// starts with a hash block listing the hashes of the continuation fragments:
//
//	{"h":"<81-tryte hash><81-tryte hash>..."}{"signature":"...","mes
//
// Readers fetch every transaction at the address, try each one as a chain
// root, reassemble and bound the fragments, parse the packet and hand it to
// a Validator. The Assembler performs one such scan and may not be reused.
package iam

// Protocol field names shared with every IAM publisher.
const (
	HashBlockField = "h"
	SignatureField = "signature"
	MessageField   = "message"
)

// MaxFragmentsPerPacket bounds the number of transactions (root included)
// a single packet may span.
const MaxFragmentsPerPacket = 5
