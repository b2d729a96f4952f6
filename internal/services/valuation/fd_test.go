package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFDValue_OneYear(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	v := FDValue(100000, 7, start, start.AddDate(0, 0, 365))
	assert.InDelta(t, 107186.0, v, 1)
}

func TestFDValue_WholeDaysOnly(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	a := FDValue(100000, 7, start, start.Add(36*time.Hour))
	b := FDValue(100000, 7, start, start.Add(24*time.Hour))
	assert.Equal(t, a, b)

	c := FDValueAt(100000, 7, start, start.Add(36*time.Hour))
	assert.Greater(t, c, b)
}

func TestFDValue_BeforeStartIsPrincipal(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5000.0, FDValue(5000, 7, start, start.AddDate(0, -1, 0)))
	assert.Equal(t, 5000.0, FDValueAt(5000, 7, start, start.AddDate(0, -1, 0)))
}

func TestFDValue_MonotonicInTime(t *testing.T) {
	start := time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)
	for _, rate := range []float64{0, 3.5, 7, 12} {
		prev := 0.0
		for d := 0; d < 2000; d += 37 {
			v := FDValue(25000, rate, start, start.AddDate(0, 0, d))
			assert.GreaterOrEqual(t, v, prev)
			prev = v
		}
	}
}

func TestRate(t *testing.T) {
	r := 6.5
	assert.Equal(t, 6.5, Rate(&r))
	assert.Equal(t, DefaultRate, Rate(nil))
}
