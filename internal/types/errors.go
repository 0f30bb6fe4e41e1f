package types

import (
	"errors"
	"strings"
)

var (
	ErrNoProviders         = errors.New("no providers available")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoLiquidity         = errors.New("no liquidity available for this swap")
	ErrAlreadyAmended      = errors.New("decision record already amended")
	ErrRecordNotFound      = errors.New("decision record not found")
	ErrFeedStatus          = errors.New("price feed returned error status")
	ErrTxReverted          = errors.New("transaction reverted")
)

// IsInsufficientBalance also matches collaborator errors that only carry the message.
func IsInsufficientBalance(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientBalance) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "insufficient balance")
}

func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
