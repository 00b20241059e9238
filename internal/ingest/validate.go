package ingest

import (
	"log"

	"github.com/lox/weatherpwa/internal/models"
)

const (
	FlagDateInvalid       = "date_invalid"
	FlagTempOutOfRange    = "temp_out_of_range"
	FlagHighBelowLow      = "high_below_low"
	FlagPrecipNegative    = "precip_negative"
	FlagPrecipImplausible = "precip_implausible"
)

// ValidateHistory returns quality flags for a history record. Readings are
// imperial (°F, inches).
func ValidateHistory(r models.HistoryRecord) []string {
	var flags []string

	if !validDate(r.Date) {
		flags = append(flags, FlagDateInvalid)
	}

	for _, t := range []*float64{r.High, r.Low} {
		if t != nil && (*t < -90 || *t > 135) {
			flags = append(flags, FlagTempOutOfRange)
			break
		}
	}

	if r.High != nil && r.Low != nil && *r.High < *r.Low {
		flags = append(flags, FlagHighBelowLow)
	}

	if r.Precip != nil {
		if *r.Precip < 0 {
			flags = append(flags, FlagPrecipNegative)
		} else if *r.Precip > 50 {
			flags = append(flags, FlagPrecipImplausible)
		}
	}

	return flags
}

// filterHistory drops records that fail validation.
func filterHistory(key string, records []models.HistoryRecord) []models.HistoryRecord {
	out := records[:0:0]
	for _, r := range records {
		if flags := ValidateHistory(r); len(flags) > 0 {
			log.Printf("refresh: dropping history %s %s: %v", key, r.Date, flags)
			continue
		}
		out = append(out, r)
	}
	return out
}
