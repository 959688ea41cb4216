package feature

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	series := []float64{1, 2, 3, 4}
	got, err := Summarize("BTC_ETH", series)
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got.Count != 4 || got.Last != 4 || got.Previous != 3 {
		t.Fatalf("unexpected basic stats: %+v", got)
	}
	if got.Min != 1 || got.Max != 4 || got.Mean != 2.5 {
		t.Fatalf("unexpected range stats: %+v", got)
	}
	if math.Abs(got.StdDev-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("unexpected std dev: %v", got.StdDev)
	}
	if got.ChangePct != 300 {
		t.Errorf("unexpected change pct: %v", got.ChangePct)
	}
	if got.RSIState != "" {
		t.Errorf("short series should not carry rsi state, got %q", got.RSIState)
	}
	if len(got.Tail) != 4 {
		t.Errorf("expected full tail, got %d", len(got.Tail))
	}
}

func TestSummarizeLongSeries(t *testing.T) {
	series := make([]float64, 40)
	for i := range series {
		series[i] = float64(i + 1)
	}
	got, err := Summarize("BTC_ETH", series)
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got.RSIState != "overbought" {
		t.Errorf("monotonic rise should be overbought, got %q (rsi=%v)", got.RSIState, got.RSI14)
	}
	if got.EMA12 <= 0 || got.EMA12 > 40 {
		t.Errorf("unexpected ema: %v", got.EMA12)
	}
	if len(got.Tail) != tailSize {
		t.Errorf("expected tail of %d, got %d", tailSize, len(got.Tail))
	}
}

func TestSummarizeRejectsShortSeries(t *testing.T) {
	if _, err := Summarize("BTC_ETH", []float64{1}); err == nil {
		t.Fatal("expected error")
	}
}
