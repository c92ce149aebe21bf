// Package indicator implements the rolling-window numeric primitives used by
// the signal generators. Every function returns a slice aligned to its input,
// with NaN wherever the value is undefined (warm-up, NaN inside the window, or
// a zero denominator).
package indicator

import (
	"math"
	"sort"
)

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rolling applies fn to every full window of length p ending at i. Windows
// containing a NaN yield NaN.
func rolling(x []float64, p int, fn func(w []float64) float64) []float64 {
	out := NaNs(len(x))
	if p <= 0 {
		return out
	}
	nanCount := 0
	for i := range x {
		if math.IsNaN(x[i]) {
			nanCount++
		}
		if i >= p && math.IsNaN(x[i-p]) {
			nanCount--
		}
		if i < p-1 || nanCount > 0 {
			continue
		}
		out[i] = fn(x[i-p+1 : i+1])
	}
	return out
}

// SMA is the simple moving average over the last p values, current included.
func SMA(x []float64, p int) []float64 {
	return rolling(x, p, mean)
}

// RollingMax is the maximum over the last p values, current included.
func RollingMax(x []float64, p int) []float64 {
	return rolling(x, p, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// RollingMin is the minimum over the last p values, current included.
func RollingMin(x []float64, p int) []float64 {
	return rolling(x, p, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// RollingStd is the sample standard deviation (n-1 denominator) over the last
// p values. Windows shorter than 2 are undefined.
func RollingStd(x []float64, p int) []float64 {
	if p < 2 {
		return NaNs(len(x))
	}
	return rolling(x, p, func(w []float64) float64 {
		m := mean(w)
		var ss float64
		for _, v := range w {
			d := v - m
			ss += d * d
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

// Shift moves x forward by k positions: out[i] = x[i-k]. The first k values
// are NaN.
func Shift(x []float64, k int) []float64 {
	out := NaNs(len(x))
	for i := k; i < len(x); i++ {
		if i-k >= 0 {
			out[i] = x[i-k]
		}
	}
	return out
}

// PctChange is x[i]/x[i-1] - 1. A zero previous value yields NaN.
func PctChange(x []float64) []float64 {
	out := NaNs(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = Ratio(x[i]-x[i-1], x[i-1])
	}
	return out
}

// Ratio divides a by b, returning NaN when b is zero or either side is NaN.
func Ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

// ---------------------------------------------------------------------------
// RSI
// ---------------------------------------------------------------------------

// RSI computes Wilder's relative strength index. The first average gain and
// loss are the simple means of deltas 1..p, so the first defined value is at
// index p; later values use avg = (prev*(p-1) + x) / p. A zero average loss
// gives 100.
func RSI(close []float64, p int) []float64 {
	out := NaNs(len(close))
	if p <= 0 || len(close) <= p {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= p; i++ {
		g, l := gainLoss(close[i] - close[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	out[p] = rsiValue(avgGain, avgLoss)

	for i := p + 1; i < len(close); i++ {
		g, l := gainLoss(close[i] - close[i-1])
		avgGain = (avgGain*float64(p-1) + g) / float64(p)
		avgLoss = (avgLoss*float64(p-1) + l) / float64(p)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func gainLoss(d float64) (gain, loss float64) {
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ---------------------------------------------------------------------------
// Bollinger bands
// ---------------------------------------------------------------------------

// Bands holds Bollinger band series aligned with the input.
type Bands struct {
	Mid   []float64
	Upper []float64
	Lower []float64
	// Width is (Upper-Lower)/Mid, NaN when Mid is zero.
	Width []float64
}

// Bollinger computes mid = SMA(p) and upper/lower = mid ± k·stdev(p) using
// the sample standard deviation.
func Bollinger(close []float64, p int, k float64) Bands {
	mid := SMA(close, p)
	std := RollingStd(close, p)
	b := Bands{
		Mid:   mid,
		Upper: make([]float64, len(close)),
		Lower: make([]float64, len(close)),
		Width: make([]float64, len(close)),
	}
	for i := range close {
		b.Upper[i] = mid[i] + k*std[i]
		b.Lower[i] = mid[i] - k*std[i]
		b.Width[i] = Ratio(b.Upper[i]-b.Lower[i], mid[i])
	}
	return b
}

// ---------------------------------------------------------------------------
// Percentile rank
// ---------------------------------------------------------------------------

// RollingPercentRank returns, for each index, the rank of the current value
// among the last p values (ties take their average rank) divided by p, times
// 100. Undefined until p defined values exist.
func RollingPercentRank(x []float64, p int) []float64 {
	if p <= 0 {
		return NaNs(len(x))
	}
	buf := make([]float64, p)
	return rolling(x, p, func(w []float64) float64 {
		cur := w[len(w)-1]
		copy(buf, w)
		sort.Float64s(buf)
		lo := sort.SearchFloat64s(buf, cur)
		hi := lo
		for hi < len(buf) && buf[hi] == cur {
			hi++
		}
		// 1-based ranks lo+1..hi averaged.
		avgRank := float64(lo+1+hi) / 2
		return avgRank / float64(len(w)) * 100
	})
}

func mean(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}
