package types

const (
	ActionBuy      = "BUY"
	ActionSell     = "SELL"
	ActionWait     = "WAIT"
	ActionLend     = "LEND"
	ActionBorrow   = "BORROW"
	ActionWithdraw = "WITHDRAW"
)

// Sub-action kinds.
const (
	KindSwapBuy  = "buy"
	KindSwapSell = "sell"
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindBorrow   = "borrow"
)

const (
	ConfidenceLow    = "LOW"
	ConfidenceMedium = "MEDIUM"
	ConfidenceHigh   = "HIGH"
)

type RiskLevel string

const (
	RiskHigh RiskLevel = "HIGH"
	RiskLow  RiskLevel = "LOW"
)

const (
	TrackTrading = "trading"
	TrackLending = "lending"
)

type Reasoning struct {
	MarketCondition   string `json:"marketCondition,omitempty"`
	TechnicalAnalysis string `json:"technicalAnalysis,omitempty"`
	MarketAnalysis    string `json:"marketAnalysis,omitempty"`
	RiskAssessment    string `json:"riskAssessment"`
}

// SubAction is one concrete on-chain operation inside a decision.
type SubAction struct {
	Action    string `json:"action"`
	Token     string `json:"token"`
	Amount    string `json:"amount,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// Opinion is one provider's parsed judgment.
type Opinion struct {
	Provider  string      `json:"provider"`
	Action    string      `json:"action"`
	Reasoning Reasoning   `json:"reasoning"`
	Actions   []SubAction `json:"actions,omitempty"`
}

// OpinionResult is either a parsed opinion or the reason the provider failed.
type OpinionResult struct {
	Provider string
	Opinion  *Opinion
	Err      error
}

func (r OpinionResult) Ok() bool {
	return r.Err == nil && r.Opinion != nil
}

type Vote struct {
	Provider string `json:"provider"`
	Action   string `json:"action,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Rates struct {
	Supply float64 `json:"supply"`
	Borrow float64 `json:"borrow"`
}

// Decision is the consolidated, actionable output of one track.
type Decision struct {
	ID              string           `json:"id,omitempty"`
	Track           string           `json:"track"`
	Action          string           `json:"action"`
	Confidence      string           `json:"confidence"`
	Reasoning       Reasoning        `json:"reasoning"`
	RiskLevel       RiskLevel        `json:"riskLevel,omitempty"`
	ShouldExecute   bool             `json:"shouldExecute"`
	Actions         []SubAction      `json:"actions,omitempty"`
	RatesAtDecision map[string]Rates `json:"ratesAtDecision,omitempty"`
	Votes           []Vote           `json:"votes,omitempty"`
}
