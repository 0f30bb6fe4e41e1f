package types

import "time"

// MarketSeries is an aligned OHLCV series for one symbol and resolution.
// High, Low and Volume may be empty when the feed omits them.
type MarketSeries struct {
	Symbol     string    `json:"symbol"`
	Resolution string    `json:"resolution"`
	Timestamps []int64   `json:"t"`
	Open       []float64 `json:"o"`
	High       []float64 `json:"h"`
	Low        []float64 `json:"l"`
	Close      []float64 `json:"c"`
	Volume     []float64 `json:"v"`
}

type SeriesRequest struct {
	Symbol     string `json:"symbol"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
	Resolution string `json:"resolution"`
}

type PriceChanges struct {
	Daily   float64 `json:"daily"`
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
}

type PriceSummary struct {
	Current float64      `json:"current"`
	Changes PriceChanges `json:"changes"`
}

type SMASet struct {
	SMA20         float64 `json:"sma20"`
	SMA50         float64 `json:"sma50"`
	SMA200        float64 `json:"sma200"`
	IsAboveSMA20  bool    `json:"isAboveSMA20"`
	IsAboveSMA50  bool    `json:"isAboveSMA50"`
	IsAboveSMA200 bool    `json:"isAboveSMA200"`
}

type VolatilitySet struct {
	Daily  float64 `json:"daily"`
	Weekly float64 `json:"weekly"`
}

type VolumeSet struct {
	Current        float64 `json:"current"`
	Trend          float64 `json:"trend"`
	IsAboveAverage bool    `json:"isAboveAverage"`
}

type Levels struct {
	Support              float64 `json:"support"`
	Resistance           float64 `json:"resistance"`
	DistanceToSupport    float64 `json:"distanceToSupport"`
	DistanceToResistance float64 `json:"distanceToResistance"`
}

type Technicals struct {
	SMA        SMASet        `json:"sma"`
	Volatility VolatilitySet `json:"volatility"`
	Volume     VolumeSet     `json:"volume"`
	Levels     Levels        `json:"levels"`
	RSI        float64       `json:"rsi"`
	Momentum   float64       `json:"momentum"`
}

// IndicatorSnapshot is the technical picture at the latest bar of a series.
// Error is set only on the fallback snapshot.
type IndicatorSnapshot struct {
	Timestamp  time.Time    `json:"timestamp"`
	Price      PriceSummary `json:"price"`
	Technicals Technicals   `json:"technicals"`
	Error      string       `json:"error,omitempty"`
}

type CycleParams struct {
	From       int64  `json:"from,omitempty"`
	To         int64  `json:"to,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
}

type Recommendations struct {
	Trading *Decision `json:"trading,omitempty"`
	Lending *Decision `json:"lending,omitempty"`
}

// CycleReport is returned to API callers for one decision cycle.
type CycleReport struct {
	Timestamp       time.Time         `json:"timestamp"`
	Pair            string            `json:"pair"`
	Indicators      IndicatorSnapshot `json:"indicators"`
	Recommendations Recommendations   `json:"recommendations"`
	Executions      []ExecutionResult `json:"executions,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
}

type CompletionRequest struct {
	System      string  `json:"system"`
	User        string  `json:"user"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}
