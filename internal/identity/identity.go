// Package identity binds IAM packets to the key of the stream that
// published them.
//
// It provides:
//   - LoadOrCreateKey: persists the stream's Ed25519 key as PKCS#8 PEM
//   - StreamID       : the public identifier readers derive addresses from
//   - PacketSigner   : signs packets as compact EdDSA JWTs
//   - PacketVerifier : an iam.Validator that checks those signatures
package identity
