package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordManager owns credential hashing. Hashes are self-describing
// (algorithm and cost live inside the hash string), so a cost bump in
// configuration upgrades stored hashes lazily on the next successful login.
type PasswordManager struct {
	cost int
}

func NewPasswordManager(cost int) *PasswordManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordManager{cost: cost}
}

func (m *PasswordManager) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a
// mismatch, never an error; bcrypt's comparison is constant time.
func (m *PasswordManager) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// NeedsUpgrade reports whether hash was produced with a weaker cost than the
// configured target. Call it only after Verify succeeded; it inspects the
// hash, it does not authenticate.
func (m *PasswordManager) NeedsUpgrade(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost < m.cost
}
