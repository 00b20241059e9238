package models

import (
	"encoding/json"
	"fmt"
)

const DateLayout = "2006-01-02"

// DailyRecord is one calendar day of archive data for a location, as used
// by the comparison engine. Every reading is optional; a nil pointer means
// the provider returned null or nothing for that day.
type DailyRecord struct {
	Date         string   `json:"date"`
	High         *float64 `json:"high"`
	Low          *float64 `json:"low"`
	Precip       *float64 `json:"precip"`
	SunshineSec  *float64 `json:"sunshine_sec"`
	Snowfall     *float64 `json:"snowfall"`
	WeatherCode  *int     `json:"weather_code"`
	Sunrise      *string  `json:"sunrise"`
	Sunset       *string  `json:"sunset"`
	ApparentHigh *float64 `json:"apparent_high"`

	// set when decoded from a document that predates apparent_high
	missingApparentHigh bool
}

// LegacySchema reports whether the record was stored before apparent_high
// was collected. A null value does not count; only an absent key does.
func (r DailyRecord) LegacySchema() bool {
	return r.missingApparentHigh
}

func (r *DailyRecord) UnmarshalJSON(b []byte) error {
	type plain DailyRecord
	var aux struct {
		plain
		ApparentHigh json.RawMessage `json:"apparent_high"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*r = DailyRecord(aux.plain)
	r.ApparentHigh = nil
	r.missingApparentHigh = aux.ApparentHigh == nil
	if len(aux.ApparentHigh) > 0 && string(aux.ApparentHigh) != "null" {
		var v float64
		if err := json.Unmarshal(aux.ApparentHigh, &v); err != nil {
			return fmt.Errorf("apparent_high: %w", err)
		}
		r.ApparentHigh = &v
	}
	return nil
}

// ComparisonEntry is the cached archive data for one location pair. The
// keys remember which side each day list belongs to.
type ComparisonEntry struct {
	Loc1Key  string        `json:"loc1_key"`
	Loc2Key  string        `json:"loc2_key"`
	Loc1Days []DailyRecord `json:"loc1_days"`
	Loc2Days []DailyRecord `json:"loc2_days"`
}

// DaysFor returns the cached days for the side identified by key.
func (e ComparisonEntry) DaysFor(key string) []DailyRecord {
	switch key {
	case e.Loc1Key:
		return e.Loc1Days
	case e.Loc2Key:
		return e.Loc2Days
	}
	return nil
}

// SetDays replaces the days for the side identified by key. Unknown keys
// are ignored.
func (e *ComparisonEntry) SetDays(key string, days []DailyRecord) {
	switch key {
	case e.Loc1Key:
		e.Loc1Days = days
	case e.Loc2Key:
		e.Loc2Days = days
	}
}
