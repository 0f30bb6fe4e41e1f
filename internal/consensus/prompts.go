package consensus

import (
	"encoding/json"
	"fmt"
	"strings"

	"llm-defi-agent/internal/types"
)

const tradingSchema = `{
  "action": "BUY" | "SELL" | "WAIT",
  "reasoning": {
    "marketCondition": "brief state",
    "technicalAnalysis": "key factors",
    "riskAssessment": "risk level"
  }
}`

const lendingSchema = `{
  "action": "LEND" | "BORROW" | "WITHDRAW" | "WAIT",
  "reasoning": {
    "marketAnalysis": "rates, liquidity and trend summary",
    "riskAssessment": "risk level"
  },
  "actions": [
    {"action": "deposit" | "withdraw" | "borrow", "token": "symbol", "amount": "decimal string", "recipient": "address"}
  ]
}`

// DisplayPair renders BTCUSD as BTC/USD.
func DisplayPair(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "/" + quote
		}
	}
	return s
}

func TradingPrompt(pair string, snap types.IndicatorSnapshot) (system, user string) {
	data, _ := json.Marshal(snap)
	p := DisplayPair(pair)
	system = fmt.Sprintf("You are a %s trading advisor. Respond with ONLY raw JSON, no markdown or code blocks.", p)
	user = fmt.Sprintf(`Based on this %s data, should we buy, sell, or wait?
Data: %s
Return ONLY this JSON structure (no markdown, no code blocks):
%s`, p, data, tradingSchema)
	return system, user
}

func LendingPrompt(md *types.MarketData, snap types.IndicatorSnapshot) (system, user string) {
	market, _ := json.Marshal(md)
	data, _ := json.Marshal(snap)
	system = "You are a DeFi lending strategist managing a single wallet. Respond with ONLY raw JSON, no markdown or code blocks."
	user = fmt.Sprintf(`Given these lending markets (interest rates, liquidity, wallet balances, collateral ratios) and the current market indicators, should we lend, borrow, withdraw, or wait?
Only use tokens listed in the markets. Amounts are token units, not base units.
Markets: %s
Indicators: %s
Return ONLY this JSON structure (no markdown, no code blocks):
%s`, market, data, lendingSchema)
	return system, user
}
