package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/qubiclite/iam/internal/iam"
	"go.uber.org/zap"
)

// PacketClaims are the JWT claims carried in a packet's signature field.
// They bind the signature to one index and one message digest.
type PacketClaims struct {
	jwt.RegisteredClaims
	Namespace string `json:"iam:ns"`
	Position  uint64 `json:"iam:pos"`
	Digest    string `json:"iam:digest"` // hex SHA-256 of the canonical message
}

// PacketSigner signs packets with the stream's Ed25519 key.
type PacketSigner struct {
	key    ed25519.PrivateKey
	issuer string
}

// NewPacketSigner creates a PacketSigner. issuer is the stream id.
func NewPacketSigner(key ed25519.PrivateKey, issuer string) *PacketSigner {
	return &PacketSigner{key: key, issuer: issuer}
}

// Sign implements iam.Signer.
func (s *PacketSigner) Sign(index iam.Index, packet iam.Packet) (string, error) {
	claims := PacketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
			ID:       uuid.New().String(),
		},
		Namespace: index.Namespace,
		Position:  index.Position,
		Digest:    messageDigest(packet),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign packet: %w", err)
	}
	return signed, nil
}

// PacketVerifier checks packet signatures of one stream. It implements
// iam.Validator.
type PacketVerifier struct {
	pub    ed25519.PublicKey
	issuer string
	logger *zap.Logger
}

// NewPacketVerifier creates a verifier for the stream owned by pub.
func NewPacketVerifier(pub ed25519.PublicKey, logger *zap.Logger) *PacketVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PacketVerifier{pub: pub, issuer: StreamID(pub), logger: logger}
}

// IsValid implements iam.Validator.
func (v *PacketVerifier) IsValid(index iam.Index, packet iam.Packet) bool {
	claims, err := v.Verify(packet.Signature())
	if err != nil {
		v.logger.Debug("packet signature rejected", zap.String("index", index.String()), zap.Error(err))
		return false
	}
	switch {
	case claims.Namespace != index.Namespace || claims.Position != index.Position:
		v.logger.Debug("packet signed for another index",
			zap.String("index", index.String()),
			zap.String("claimed", fmt.Sprintf("%s/%d", claims.Namespace, claims.Position)),
		)
		return false
	case claims.Digest != messageDigest(packet):
		v.logger.Debug("packet message does not match signed digest", zap.String("index", index.String()))
		return false
	}
	return true
}

// Verify parses a packet signature and returns its claims.
func (v *PacketVerifier) Verify(tokenStr string) (*PacketClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&PacketClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return v.pub, nil
		},
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("verify packet signature: %w", err)
	}
	claims, ok := token.Claims.(*PacketClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid packet claims")
	}
	return claims, nil
}

func messageDigest(p iam.Packet) string {
	sum := sha256.Sum256(p.CanonicalMessage())
	return hex.EncodeToString(sum[:])
}
