package usno

import (
	"testing"
	"time"
)

func TestEstimateMoon(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name      string
		at        time.Time
		wantPhase string
		wantIllum string
	}{
		{"reference new moon", newMoonRef, "New Moon", "0%"},
		{"first quarter", newMoonRef.Add(time.Duration(lunarCycle / 4 * float64(day))), "First Quarter", "50%"},
		{"full", newMoonRef.Add(time.Duration(lunarCycle / 2 * float64(day))), "Full Moon", "100%"},
		{"next cycle", newMoonRef.Add(time.Duration(lunarCycle * 3 * float64(day))), "New Moon", "0%"},
		{"before reference", newMoonRef.Add(-time.Duration(lunarCycle / 4 * float64(day))), "Last Quarter", "50%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateMoon(tt.at)
			if got.Phase != tt.wantPhase {
				t.Errorf("Phase = %q, want %q", got.Phase, tt.wantPhase)
			}
			if got.Illumination != tt.wantIllum {
				t.Errorf("Illumination = %q, want %q", got.Illumination, tt.wantIllum)
			}
			if got.Rise != "" || got.Set != "" {
				t.Error("estimate should carry no rise/set times")
			}
		})
	}
}
