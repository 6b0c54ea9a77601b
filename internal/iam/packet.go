package iam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Packet is a reassembled, structurally valid IAM message together with the
// signature its publisher attached. Packets are produced by the Assembler
// and are immutable.
//
// Equality contract: two packets are Equal when their messages are equal,
// REGARDLESS of their signatures. This deduplicates the same statement
// published more than once (for example re-signed with a fresh token). Do
// not add the signature to Equal; callers that need to tell signatures
// apart must compare Signature() themselves.
type Packet struct {
	message   map[string]any
	signature string
	canonical []byte
}

// NewPacket builds a packet from a message object and signature.
// Publishers use it before signing; readers obtain packets from ParsePacket.
func NewPacket(message map[string]any, signature string) (Packet, error) {
	if message == nil {
		return Packet{}, fmt.Errorf("%w: message is required", ErrMalformedPacket)
	}
	canonical, err := json.Marshal(message)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	// Re-decode so the packet holds its own copy with json.Number values.
	var own map[string]any
	if err := decodeObject(canonical, &own); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return Packet{message: own, signature: signature, canonical: canonical}, nil
}

// ParsePacket parses reassembled packet text. Both the signature (string)
// and the message (object) fields are required.
func ParsePacket(text string) (Packet, error) {
	var fields map[string]json.RawMessage
	if err := decodeObject([]byte(text), &fields); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}

	rawSig, ok := fields[SignatureField]
	if !ok {
		return Packet{}, fmt.Errorf("%w: missing %q", ErrMalformedPacket, SignatureField)
	}
	var signature *string
	if err := json.Unmarshal(rawSig, &signature); err != nil || signature == nil {
		return Packet{}, fmt.Errorf("%w: %q is not a string", ErrMalformedPacket, SignatureField)
	}

	rawMsg, ok := fields[MessageField]
	if !ok {
		return Packet{}, fmt.Errorf("%w: missing %q", ErrMalformedPacket, MessageField)
	}
	var message map[string]any
	if err := decodeObject(rawMsg, &message); err != nil || message == nil {
		return Packet{}, fmt.Errorf("%w: %q is not an object", ErrMalformedPacket, MessageField)
	}

	return NewPacket(message, *signature)
}

// Message returns a copy of the packet's message object. Numbers are
// json.Number values.
func (p Packet) Message() map[string]any {
	var out map[string]any
	_ = decodeObject(p.canonical, &out)
	return out
}

// Signature returns the signature string the publisher attached.
func (p Packet) Signature() string { return p.signature }

// CanonicalMessage returns the message encoded as JSON with sorted keys.
// Signers and validators compute digests over these bytes.
func (p Packet) CanonicalMessage() []byte {
	return append([]byte(nil), p.canonical...)
}

// Equal reports whether p and other carry the same message. Signatures are
// deliberately ignored; see the type documentation.
func (p Packet) Equal(other Packet) bool {
	return bytes.Equal(p.canonical, other.canonical)
}

// MarshalJSON encodes the packet in its wire form.
func (p Packet) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		SignatureField: p.signature,
		MessageField:   json.RawMessage(p.canonical),
	})
}

// decodeObject decodes data into v, preserving number text and rejecting
// trailing content after the JSON value.
func decodeObject(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}
