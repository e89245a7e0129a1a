package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// CodeLength is the number of digits in an issued code.
const CodeLength = 6

// Gate issues and verifies one-time codes that guard the booking
// unverified -> pending transition.
type Gate struct {
	store    Store
	generate func() (string, error)
}

type Option func(*Gate)

// WithGenerator replaces the random code source.
func WithGenerator(fn func() (string, error)) Option {
	return func(g *Gate) {
		g.generate = fn
	}
}

func NewGate(store Store, opts ...Option) *Gate {
	g := &Gate{store: store, generate: randomCode}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue creates a fresh code for the booking, superseding any previous one,
// and returns it in plaintext for hand-off to the delivery channel.
func (g *Gate) Issue(ctx context.Context, bookingID, email string, expiresAt time.Time) (string, error) {
	code, err := g.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	err = g.store.Create(ctx, Challenge{
		BookingID: bookingID,
		Email:     email,
		CodeHash:  HashCode(bookingID, code),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify consumes the booking's challenge if code matches.
func (g *Gate) Verify(ctx context.Context, bookingID, code string, now time.Time) error {
	if !wellFormed(code) {
		return ErrInvalid
	}
	return g.store.Consume(ctx, bookingID, HashCode(bookingID, code), now)
}

// Invalidate drops the booking's challenge.
func (g *Gate) Invalidate(ctx context.Context, bookingID string) error {
	return g.store.Invalidate(ctx, bookingID)
}

// HashCode binds a code to its booking so that digests are not reusable
// across bookings.
func HashCode(bookingID, code string) string {
	sum := sha256.Sum256([]byte(bookingID + ":" + code))
	return hex.EncodeToString(sum[:])
}

func wellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
