package coin

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
)

// Source produces a coin outcome.
type Source interface {
	Flip() (domain.Choice, error)
}

var two = big.NewInt(2)

// Crypto draws outcomes from a cryptographically strong reader. rand.Int samples
// uniformly from [0, 2), so the mapping to a side carries no modulo bias.
type Crypto struct {
	// Reader defaults to crypto/rand.Reader.
	Reader io.Reader
}

func (c Crypto) Flip() (domain.Choice, error) {
	r := c.Reader
	if r == nil {
		r = rand.Reader
	}

	n, err := rand.Int(r, two)
	if err != nil {
		return "", fmt.Errorf("coin: read entropy: %w", err)
	}

	if n.Sign() == 0 {
		return domain.Heads, nil
	}
	return domain.Tails, nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (domain.Choice, error)

func (f SourceFunc) Flip() (domain.Choice, error) { return f() }

// Always returns a Source that never varies; useful in tests and replays.
func Always(c domain.Choice) Source {
	return SourceFunc(func() (domain.Choice, error) { return c, nil })
}
