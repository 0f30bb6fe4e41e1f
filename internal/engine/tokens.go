package engine

import (
	"fmt"

	"llm-defi-agent/internal/types"
)

// TokenPair holds the ERC-20 addresses traded by the swap track.
type TokenPair struct {
	Stable string
	Asset  string
}

// forSide returns the token sold and bought. A buy spends the stable token.
func (p TokenPair) forSide(side string) (sell, buy string, err error) {
	switch side {
	case types.KindSwapBuy:
		return p.Stable, p.Asset, nil
	case types.KindSwapSell:
		return p.Asset, p.Stable, nil
	default:
		return "", "", fmt.Errorf("unknown swap side %q", side)
	}
}
