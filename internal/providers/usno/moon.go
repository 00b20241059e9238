package usno

import (
	"fmt"
	"math"
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

const lunarCycle = 29.530588

// reference new moon, 2000-01-06 18:14 UTC
var newMoonRef = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

var phaseNames = [8]string{
	"New Moon", "Waxing Crescent", "First Quarter", "Waxing Gibbous",
	"Full Moon", "Waning Gibbous", "Last Quarter", "Waning Crescent",
}

// EstimateMoon approximates the moon phase and illumination at t from the
// mean synodic month. It carries no rise/set times and stands in when the
// USNO lookup fails.
func EstimateMoon(t time.Time) *models.MoonTimes {
	days := t.Sub(newMoonRef).Hours() / 24
	pos := math.Mod(days, lunarCycle)
	if pos < 0 {
		pos += lunarCycle
	}
	frac := pos / lunarCycle

	illum := (1 - math.Cos(frac*2*math.Pi)) / 2 * 100
	return &models.MoonTimes{
		Phase:        phaseNames[int(math.Round(frac*8))%8],
		Illumination: fmt.Sprintf("%d%%", int(math.Round(illum))),
	}
}
