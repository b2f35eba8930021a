package market

import (
	"fmt"
	"strings"

	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
)

// Pair is a (first, second) trading pair. Amounts are quoted in First,
// prices in units of Second per unit of First.
type Pair struct {
	First  assets.Token `json:"first"`
	Second assets.Token `json:"second"`
}

func NewPair(first, second assets.Token) Pair {
	return Pair{First: first, Second: second}
}

// String renders the pair as "FIRST/SECOND".
func (p Pair) String() string {
	return string(p.First) + "/" + string(p.Second)
}

// ParsePair accepts "BTC/PCX" or "BTC-PCX".
func ParsePair(s string) (Pair, error) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q", s)
	}
	return Pair{First: assets.Token(parts[0]), Second: assets.Token(parts[1])}, nil
}

// Detail is the per-pair metadata fixed when the pair is registered.
type Detail struct {
	Pair      Pair   `json:"pair"`
	Precision uint32 `json:"precision"` // price precision
}
