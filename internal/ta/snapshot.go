package ta

import (
	"time"

	"llm-defi-agent/internal/types"
)

// Window lengths assume 4-hour bars.
const (
	DailyPeriods   = 6
	WeeklyPeriods  = 42
	MonthlyPeriods = 180
	LevelsWindow   = 30
	RSIPeriod      = 14
	MomentumPeriod = 14
)

const InvalidDataMarker = "Invalid data"

// Compute builds the indicator snapshot for the latest bar. It never fails:
// a series without timestamps or prices yields DefaultSnapshot.
func Compute(series *types.MarketSeries) types.IndicatorSnapshot {
	if series == nil || len(series.Timestamps) == 0 {
		return DefaultSnapshot(series)
	}
	prices := series.Close
	if len(prices) == 0 {
		prices = series.Open
	}
	if len(prices) == 0 {
		return DefaultSnapshot(series)
	}

	latest := prices[len(prices)-1]
	sma20 := SMA(prices, 20)
	sma50 := SMA(prices, 50)
	sma200 := SMA(prices, 200)
	support, resistance := SupportResistance(prices, LevelsWindow)
	vol, volTrend, volAbove := VolumeTrend(series.Volume)

	var toSupport, toResistance float64
	if latest != 0 {
		toSupport = (latest - support) / latest * 100
		toResistance = (resistance - latest) / latest * 100
	}

	return types.IndicatorSnapshot{
		Timestamp: time.Unix(series.Timestamps[len(series.Timestamps)-1], 0).UTC(),
		Price: types.PriceSummary{
			Current: latest,
			Changes: types.PriceChanges{
				Daily:   Round2(PriceChange(prices, DailyPeriods)),
				Weekly:  Round2(PriceChange(prices, WeeklyPeriods)),
				Monthly: Round2(PriceChange(prices, MonthlyPeriods)),
			},
		},
		Technicals: types.Technicals{
			SMA: types.SMASet{
				SMA20:         Round2(sma20),
				SMA50:         Round2(sma50),
				SMA200:        Round2(sma200),
				IsAboveSMA20:  latest > sma20,
				IsAboveSMA50:  latest > sma50,
				IsAboveSMA200: latest > sma200,
			},
			Volatility: types.VolatilitySet{
				Daily:  Round2(Volatility(prices, DailyPeriods)),
				Weekly: Round2(Volatility(prices, WeeklyPeriods)),
			},
			Volume: types.VolumeSet{
				Current:        vol,
				Trend:          Round2(volTrend),
				IsAboveAverage: volAbove,
			},
			Levels: types.Levels{
				Support:              Round2(support),
				Resistance:           Round2(resistance),
				DistanceToSupport:    Round2(toSupport),
				DistanceToResistance: Round2(toResistance),
			},
			RSI:      Round2(RSI(prices, RSIPeriod)),
			Momentum: Round2(Momentum(prices, MomentumPeriod)),
		},
	}
}

// DefaultSnapshot is the all-zero fallback. Its timestamp comes from the
// series when present so repeated calls stay identical.
func DefaultSnapshot(series *types.MarketSeries) types.IndicatorSnapshot {
	var ts time.Time
	if series != nil && len(series.Timestamps) > 0 {
		ts = time.Unix(series.Timestamps[len(series.Timestamps)-1], 0).UTC()
	}
	return types.IndicatorSnapshot{Timestamp: ts, Error: InvalidDataMarker}
}
