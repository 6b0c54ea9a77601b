package iam

import (
	"encoding/json"
	"strings"

	"github.com/qubiclite/iam/pkg/trytes"
)

// SplitHashBlock separates the optional hash block at the start of a root
// fragment from the first message fragment that follows it.
//
// A hash block is present only when text starts with '{' and the text up to
// and including the first '}' is a JSON object with a string HashBlockField.
// Anything else, including malformed JSON, means text is a single unchained
// fragment: SplitHashBlock then returns no hashes and text unchanged. It
// never panics on adversarial input.
func SplitHashBlock(text string) (hashes []string, first string) {
	end := strings.IndexByte(text, '}')
	if !strings.HasPrefix(text, "{") || end < 0 {
		return nil, text
	}
	header := text[:end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(header), &fields); err != nil {
		return nil, text
	}
	raw, ok := fields[HashBlockField]
	if !ok {
		return nil, text
	}
	var block *string
	if err := json.Unmarshal(raw, &block); err != nil || block == nil {
		return nil, text
	}
	return splitHashes(*block), text[len(header):]
}

// splitHashes cuts a hash block into HashLength-wide segments. A short
// trailing segment is kept; it can never match a transaction hash.
func splitHashes(block string) []string {
	if block == "" {
		return nil
	}
	n := (len(block) + trytes.HashLength - 1) / trytes.HashLength
	out := make([]string, 0, n)
	for len(block) > trytes.HashLength {
		out = append(out, block[:trytes.HashLength])
		block = block[trytes.HashLength:]
	}
	return append(out, block)
}

// encodeHashBlock renders the hash block that precedes the first fragment.
func encodeHashBlock(hashes []string) string {
	b, _ := json.Marshal(map[string]string{HashBlockField: strings.Join(hashes, "")})
	return string(b)
}

// hashBlockLength is the encoded length of a block listing n hashes.
func hashBlockLength(n int) int {
	return len(`{"":""}`) + len(HashBlockField) + n*trytes.HashLength
}
