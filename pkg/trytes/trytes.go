// Package trytes converts between ASCII text and the balanced-ternary
// "tryte" alphabet used by Tangle transactions.
//
// A tryte is one of the 27 characters in Alphabet. Every byte of text is
// stored as two trytes: the first holds the value modulo 27, the second the
// quotient. The tryte '9' encodes zero, so unused message space is filled
// with '9' and a run of "99" pairs at the end of a message is filler.
package trytes

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet is the ordered set of valid tryte characters.
const Alphabet = "9ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	// MessageLength is the number of trytes in one transaction message.
	MessageLength = 2187
	// AddressLength is the number of trytes in an address.
	AddressLength = 81
	// HashLength is the number of trytes in a transaction hash.
	HashLength = 81
	// MessageCapacity is the number of ASCII characters one transaction
	// message can carry after the reserved trailing tryte is dropped.
	MessageCapacity = (MessageLength - 1) / 2
)

// ErrOddLength is returned when a tryte string cannot be split into pairs.
var ErrOddLength = errors.New("trytes: odd length")

// FromASCII encodes s into trytes, two per byte.
func FromASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		v := int(s[i])
		b.WriteByte(Alphabet[v%27])
		b.WriteByte(Alphabet[v/27])
	}
	return b.String()
}

// ToASCII decodes a tryte string produced by FromASCII.
func ToASCII(t string) (string, error) {
	if len(t)%2 != 0 {
		return "", ErrOddLength
	}
	out := make([]byte, 0, len(t)/2)
	for i := 0; i < len(t); i += 2 {
		lo := strings.IndexByte(Alphabet, t[i])
		hi := strings.IndexByte(Alphabet, t[i+1])
		if lo < 0 || hi < 0 {
			return "", fmt.Errorf("trytes: invalid character at offset %d", i)
		}
		v := lo + hi*27
		if v > 255 {
			return "", fmt.Errorf("trytes: pair at offset %d out of byte range", i)
		}
		out = append(out, byte(v))
	}
	return string(out), nil
}

// Valid reports whether t consists only of tryte characters.
func Valid(t string) bool {
	for i := 0; i < len(t); i++ {
		if strings.IndexByte(Alphabet, t[i]) < 0 {
			return false
		}
	}
	return true
}

// Pad right-fills t with '9' up to n trytes. Longer input is returned as is.
func Pad(t string, n int) string {
	if len(t) >= n {
		return t
	}
	return t + strings.Repeat("9", n-len(t))
}

// TrimEnd strips trailing '9' filler while keeping the result pair aligned,
// so that a final byte whose second tryte is '9' survives.
func TrimEnd(t string) string {
	trimmed := strings.TrimRight(t, "9")
	if len(trimmed)%2 != 0 {
		trimmed += "9"
	}
	return trimmed
}

// DecodeMessage turns a transaction message into text. The payload is cut to
// the usable width, filler is stripped and the remainder decoded.
func DecodeMessage(payload string) (string, error) {
	if len(payload) > MessageLength-1 {
		payload = payload[:MessageLength-1]
	}
	return ToASCII(TrimEnd(payload))
}

// EncodeMessage encodes text into a full-width transaction message.
func EncodeMessage(text string) (string, error) {
	if len(text) > MessageCapacity {
		return "", fmt.Errorf("trytes: message of %d characters exceeds capacity %d", len(text), MessageCapacity)
	}
	return Pad(FromASCII(text), MessageLength), nil
}

// FromBytes renders arbitrary bytes as trytes and fits the result to n
// trytes, truncating or padding as required. It is used to derive
// fixed-width identifiers such as addresses and hashes from digests.
func FromBytes(b []byte, n int) string {
	t := FromASCII(string(b))
	if len(t) > n {
		return t[:n]
	}
	return Pad(t, n)
}
