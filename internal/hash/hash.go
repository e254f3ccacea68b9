package hash

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt checks plaintext passwords against stored bcrypt hashes.
type Bcrypt struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{Cost: cost}
}

func (b *Bcrypt) Hash(plaintext string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost())
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

func (b *Bcrypt) Matches(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Burn runs a comparison against a throwaway hash so that lookups of unknown
// accounts take as long as a real password check.
func (b *Bcrypt) Burn(plaintext string) {
	b.dummyOnce.Do(func() {
		b.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), b.cost())
	})
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(plaintext))
}

func (b *Bcrypt) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}
