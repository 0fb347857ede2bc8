package domain

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	SeedSecretSize = 32

	drawSeedTag = "lotteryd/draw/v1"
)

// NewSeedSecret returns a fresh hex encoded secret to commit to at round start.
func NewSeedSecret() (string, error) {
	buf := make([]byte, SeedSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate seed secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SeedCommitment is the hex encoded sha256 of the secret, published when the
// round opens.
func SeedCommitment(secret string) (string, error) {
	buf, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	commitment := sha256.Sum256(buf)
	return hex.EncodeToString(commitment[:]), nil
}

// DrawSeed is the double sha256 of:
//
//	tag || secret || round (8 bytes BE) || endTime (8 bytes BE) ||
//	ticketsCount (8 bytes BE) || sha256(ticketIds, 8 bytes BE each)
//
// Every input is fixed once the round reaches its end time, so anybody holding
// the revealed secret can recompute the draw.
func DrawSeed(
	secret string, round uint64, endTime int64, ticketIds []uint64,
) (*chainhash.Hash, error) {
	secretBytes, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}

	ids := sha256.New()
	for _, id := range ticketIds {
		_ = binary.Write(ids, binary.BigEndian, id)
	}

	buf := bytes.NewBufferString(drawSeedTag)
	buf.Write(secretBytes)
	_ = binary.Write(buf, binary.BigEndian, round)
	_ = binary.Write(buf, binary.BigEndian, uint64(endTime))
	_ = binary.Write(buf, binary.BigEndian, uint64(len(ticketIds)))
	buf.Write(ids.Sum(nil))

	seed := chainhash.DoubleHashH(buf.Bytes())
	return &seed, nil
}

// SelectWinner maps the seed onto one of the given tickets. The first 8 bytes
// of the seed, read big endian, are reduced modulo the number of tickets.
func SelectWinner(seed *chainhash.Hash, ticketIds []uint64) (uint64, error) {
	if len(ticketIds) <= 0 {
		return 0, ErrNoTickets
	}
	if seed == nil {
		return 0, fmt.Errorf("missing draw seed")
	}
	index := binary.BigEndian.Uint64(seed[:8]) % uint64(len(ticketIds))
	return ticketIds[index], nil
}

// SeedString encodes a seed in natural byte order, unlike chainhash.Hash.String.
func SeedString(seed *chainhash.Hash) string {
	return hex.EncodeToString(seed[:])
}

func decodeSecret(secret string) ([]byte, error) {
	buf, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid seed secret format: %w", err)
	}
	if len(buf) != SeedSecretSize {
		return nil, fmt.Errorf(
			"invalid seed secret size: expected %d bytes, got %d", SeedSecretSize, len(buf),
		)
	}
	return buf, nil
}

// DrawResult is the outcome of the latest settlement. A round settled without
// tickets has an empty winner and a zero amount.
type DrawResult struct {
	Round     uint64
	Winner    string
	TicketId  uint64
	Amount    uint64
	Seed      string
	Timestamp int64
}
