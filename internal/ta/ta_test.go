package ta

import (
	"reflect"
	"testing"

	"llm-defi-agent/internal/types"
)

func risingSeries(n int) *types.MarketSeries {
	s := &types.MarketSeries{Symbol: "BTCUSD", Resolution: "240"}
	for i := 0; i < n; i++ {
		s.Timestamps = append(s.Timestamps, int64(1_700_000_000+i*4*3600))
		p := 30000 + float64(i)*25
		s.Open = append(s.Open, p-10)
		s.High = append(s.High, p+15)
		s.Low = append(s.Low, p-20)
		s.Close = append(s.Close, p)
		s.Volume = append(s.Volume, 100+float64(i%7))
	}
	return s
}

func TestComputeEmptySeries(t *testing.T) {
	for name, s := range map[string]*types.MarketSeries{
		"nil":           nil,
		"no timestamps": {},
		"no prices":     {Timestamps: []int64{1, 2, 3}},
	} {
		snap := Compute(s)
		if snap.Error != InvalidDataMarker {
			t.Errorf("%s: Expected error marker %q, got %q", name, InvalidDataMarker, snap.Error)
		}
		if snap.Price.Current != 0 || snap.Technicals.RSI != 0 {
			t.Errorf("%s: Expected zeroed snapshot, got %+v", name, snap)
		}
	}
}

func TestComputeRisingSeries(t *testing.T) {
	snap := Compute(risingSeries(250))

	if snap.Error != "" {
		t.Fatalf("Expected no error, got %q", snap.Error)
	}
	sma := snap.Technicals.SMA
	if !sma.IsAboveSMA20 || !sma.IsAboveSMA50 || !sma.IsAboveSMA200 {
		t.Errorf("Expected price above all SMAs, got %+v", sma)
	}
	if snap.Technicals.RSI <= 50 {
		t.Errorf("Expected RSI > 50, got %f", snap.Technicals.RSI)
	}
	if snap.Technicals.Momentum <= 0 {
		t.Errorf("Expected positive momentum, got %f", snap.Technicals.Momentum)
	}
	if snap.Price.Changes.Monthly <= snap.Price.Changes.Daily {
		t.Errorf("Expected monthly change above daily change, got %f <= %f", snap.Price.Changes.Monthly, snap.Price.Changes.Daily)
	}
	if snap.Technicals.Levels.DistanceToResistance != 0 {
		t.Errorf("Expected latest price at resistance, got distance %f", snap.Technicals.Levels.DistanceToResistance)
	}
}

func TestComputeFallsBackToOpen(t *testing.T) {
	s := risingSeries(30)
	s.Close = nil

	snap := Compute(s)
	if snap.Error != "" {
		t.Fatalf("Expected open prices to be used, got error %q", snap.Error)
	}
	if snap.Price.Current != s.Open[len(s.Open)-1] {
		t.Errorf("Expected current price %f, got %f", s.Open[len(s.Open)-1], snap.Price.Current)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	s := risingSeries(220)
	a := Compute(s)
	b := Compute(s)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical snapshots, got %+v and %+v", a, b)
	}

	da := DefaultSnapshot(s)
	db := DefaultSnapshot(s)
	if !reflect.DeepEqual(da, db) {
		t.Errorf("Expected identical default snapshots, got %+v and %+v", da, db)
	}
}

func TestIndicatorEdgeCases(t *testing.T) {
	if got := SMA([]float64{1, 2}, 20); got != 0 {
		t.Errorf("Expected SMA 0 on short history, got %f", got)
	}
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("Expected RSI 50 on short history, got %f", got)
	}
	if got := PriceChange([]float64{100, 110}, 6); got != 0 {
		t.Errorf("Expected change 0 on short history, got %f", got)
	}
	if got := PriceChange([]float64{100, 105, 110}, 3); got != 10 {
		t.Errorf("Expected change 10, got %f", got)
	}
	if got := Momentum(make([]float64, 14), 14); got != 0 {
		t.Errorf("Expected momentum 0 without a base value, got %f", got)
	}
	if got := Volatility([]float64{100}, 6); got != 0 {
		t.Errorf("Expected volatility 0 for one price, got %f", got)
	}
	if _, trend, above := VolumeTrend(nil); trend != 0 || above {
		t.Errorf("Expected neutral volume trend, got %f %v", trend, above)
	}
	if got := Round2(1.23456); got != 1.23 {
		t.Errorf("Expected 1.23, got %f", got)
	}
}

func TestRSIFalling(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}
	if got := RSI(prices, 14); got != 0 {
		t.Errorf("Expected RSI 0 for strictly falling prices, got %f", got)
	}
}

func TestRSIWithoutLosses(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	if got := RSI(rising, 14); got != 100 {
		t.Errorf("Expected RSI 100 for strictly rising prices, got %f", got)
	}

	// Flat bars between gains add no loss.
	stepped := []float64{10, 10, 11, 11, 12, 12, 12, 13, 13, 14, 14, 14, 15, 15, 16}
	if got := RSI(stepped, 14); got != 100 {
		t.Errorf("Expected RSI 100 for non-decreasing prices, got %f", got)
	}
}
