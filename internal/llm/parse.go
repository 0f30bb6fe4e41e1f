package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"llm-defi-agent/internal/types"
)

var ErrNoJSON = errors.New("no JSON object in response")

var (
	tradingActions = map[string]bool{types.ActionBuy: true, types.ActionSell: true, types.ActionWait: true}
	lendingActions = map[string]bool{types.ActionLend: true, types.ActionBorrow: true, types.ActionWithdraw: true, types.ActionWait: true}
)

// ExtractJSON strips code fences and returns the single JSON object in raw.
func ExtractJSON(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	t = strings.TrimSpace(t)

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return t[start : end+1], nil
}

func decode(raw string, v any) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode opinion: %w", err)
	}
	if dec.More() {
		return errors.New("decode opinion: more than one JSON value")
	}
	return nil
}

// ParseTradingOpinion never fails outright: an unusable payload becomes a failed result.
func ParseTradingOpinion(provider, raw string) types.OpinionResult {
	var payload struct {
		Action    string          `json:"action"`
		Reasoning types.Reasoning `json:"reasoning"`
	}
	if err := decode(raw, &payload); err != nil {
		return types.OpinionResult{Provider: provider, Err: err}
	}
	action := strings.ToUpper(strings.TrimSpace(payload.Action))
	if !tradingActions[action] {
		return types.OpinionResult{Provider: provider, Err: fmt.Errorf("unknown trading action %q", payload.Action)}
	}
	return types.OpinionResult{
		Provider: provider,
		Opinion:  &types.Opinion{Provider: provider, Action: action, Reasoning: payload.Reasoning},
	}
}

func ParseLendingOpinion(provider, raw string) types.OpinionResult {
	var payload struct {
		Action    string          `json:"action"`
		Reasoning types.Reasoning `json:"reasoning"`
		Actions   []struct {
			Action    string `json:"action"`
			Token     string `json:"token"`
			Amount    any    `json:"amount"`
			Recipient string `json:"recipient"`
		} `json:"actions"`
	}
	if err := decode(raw, &payload); err != nil {
		return types.OpinionResult{Provider: provider, Err: err}
	}
	action := strings.ToUpper(strings.TrimSpace(payload.Action))
	if !lendingActions[action] {
		return types.OpinionResult{Provider: provider, Err: fmt.Errorf("unknown lending action %q", payload.Action)}
	}

	op := &types.Opinion{Provider: provider, Action: action, Reasoning: payload.Reasoning}
	for _, a := range payload.Actions {
		op.Actions = append(op.Actions, types.SubAction{
			Action:    strings.ToLower(strings.TrimSpace(a.Action)),
			Token:     strings.TrimSpace(a.Token),
			Amount:    amountString(a.Amount),
			Recipient: strings.TrimSpace(a.Recipient),
		})
	}
	return types.OpinionResult{Provider: provider, Opinion: op}
}

func amountString(v any) string {
	switch a := v.(type) {
	case string:
		return strings.TrimSpace(a)
	case json.Number:
		return a.String()
	case float64:
		return strconv.FormatFloat(a, 'f', -1, 64)
	default:
		return ""
	}
}
