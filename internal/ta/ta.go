package ta

import "math"

// SMA is the mean of the last n values, or 0 when there are fewer than n.
func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

// RSI averages the last period gains and losses. 50 when history is short, 100 with no losses.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return 50
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// PriceChange is the percent move from the value `periods` bars back (inclusive of the latest).
func PriceChange(prices []float64, periods int) float64 {
	if len(prices) < periods || periods <= 0 {
		return 0
	}
	recent := prices[len(prices)-1]
	old := prices[len(prices)-periods]
	if old == 0 {
		return 0
	}
	return (recent - old) / old * 100
}

func Momentum(prices []float64, period int) float64 {
	if len(prices) <= period || period <= 0 {
		return 0
	}
	old := prices[len(prices)-1-period]
	if old == 0 {
		return 0
	}
	return (prices[len(prices)-1]/old - 1) * 100
}

func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// StdDev is the population standard deviation.
func StdDev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := SMA(vals, len(vals))
	s := 0.0
	for _, v := range vals {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(vals)))
}

// Volatility is the std of returns over the last window prices, as a percentage.
func Volatility(prices []float64, window int) float64 {
	return StdDev(Returns(tail(prices, window))) * 100
}

func SupportResistance(prices []float64, window int) (support, resistance float64) {
	t := tail(prices, window)
	if len(t) == 0 {
		return 0, 0
	}
	support, resistance = t[0], t[0]
	for _, p := range t[1:] {
		support = math.Min(support, p)
		resistance = math.Max(resistance, p)
	}
	return support, resistance
}

// VolumeTrend compares the latest volume against the series average, in percent.
func VolumeTrend(volumes []float64) (latest, trend float64, aboveAverage bool) {
	if len(volumes) == 0 {
		return 0, 0, false
	}
	latest = volumes[len(volumes)-1]
	avg := SMA(volumes, len(volumes))
	if avg == 0 {
		return latest, 0, false
	}
	return latest, (latest/avg - 1) * 100, latest > avg
}

func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*100) / 100
}

func tail(vals []float64, n int) []float64 {
	if n <= 0 || len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}
