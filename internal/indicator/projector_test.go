package indicator

import (
	"context"
	"math"
	"testing"
)

func linearSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestProjectorTSFExtendsLinearTrend(t *testing.T) {
	p, err := NewProjector("tsf")
	if err != nil {
		t.Fatalf("NewProjector error: %v", err)
	}
	series := linearSeries(30)

	got, err := p.Project(context.Background(), series, 3, nil)
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(got))
	}
	for i, v := range got {
		want := 130 + float64(i)
		if math.Abs(v-want) > 1e-6 {
			t.Errorf("step %d: expected %.6f, got %.6f", i+1, want, v)
		}
	}
	if len(series) != 30 {
		t.Fatalf("input series must not grow, len=%d", len(series))
	}
}

func TestProjectorEMAConstantSeries(t *testing.T) {
	p, err := NewProjector(MethodEMA)
	if err != nil {
		t.Fatalf("NewProjector error: %v", err)
	}
	series := make([]float64, 20)
	for i := range series {
		series[i] = 0.025
	}

	got, err := p.Project(context.Background(), series, 2, map[string]any{"timeperiod": 5})
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}
	for i, v := range got {
		if math.Abs(v-0.025) > 1e-12 {
			t.Errorf("step %d: expected 0.025, got %v", i+1, v)
		}
	}
}

func TestProjectorRejectsShortSeries(t *testing.T) {
	p, _ := NewProjector(MethodLinearReg)
	if _, err := p.Project(context.Background(), linearSeries(5), 1, nil); err == nil {
		t.Fatal("expected error for short series")
	}
}

func TestProjectorRejectsBadHyperparameters(t *testing.T) {
	p, _ := NewProjector(MethodTSF)
	if _, err := p.Project(context.Background(), linearSeries(30), 1, map[string]any{"timeperiod": "x"}); err == nil {
		t.Fatal("expected error for non-numeric timeperiod")
	}
	if _, err := p.Project(context.Background(), linearSeries(30), 1, map[string]any{"TimePeriod": 1}); err == nil {
		t.Fatal("expected error for timeperiod below 2")
	}
}

func TestNewProjectorUnknownMethod(t *testing.T) {
	if _, err := NewProjector("ARIMA"); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}

func TestProjectorHonoursContext(t *testing.T) {
	p, _ := NewProjector(MethodTSF)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Project(ctx, linearSeries(30), 2, nil); err == nil {
		t.Fatal("expected context error")
	}
}
