package cache

import (
	"testing"
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache() (*Cache, *clock) {
	clk := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(TTLs{})
	c.now = clk.now
	return c, clk
}

func TestCurrentTTL(t *testing.T) {
	c, clk := newTestCache()
	cur := &models.CurrentConditions{CurrentWeather: models.CurrentWeather{Temperature: 80}}
	c.SetCurrent("k", cur)

	clk.t = clk.t.Add(9 * time.Minute)
	if got := c.GetCurrent("k"); got != cur {
		t.Errorf("GetCurrent at 9m = %v, want cached", got)
	}
	if age, ok := c.CurrentAge("k"); !ok || age != 9*time.Minute {
		t.Errorf("CurrentAge = %v, %v", age, ok)
	}

	clk.t = clk.t.Add(time.Minute)
	if got := c.GetCurrent("k"); got != nil {
		t.Errorf("GetCurrent at 10m = %v, want nil", got)
	}
	if got := c.GetStaleCurrent("k"); got != cur {
		t.Errorf("GetStaleCurrent = %v, want stale value", got)
	}

	c.ClearCurrent("k")
	if got := c.GetStaleCurrent("k"); got != nil {
		t.Errorf("after clear = %v", got)
	}
	if _, ok := c.CurrentAge("k"); ok {
		t.Error("CurrentAge after clear reported ok")
	}
}

func TestGeocodeTTL(t *testing.T) {
	c, clk := newTestCache()
	c.SetGeocode("austin", []models.Location{{Name: "Austin"}})

	if got, ok := c.GetGeocode("austin"); !ok || len(got) != 1 {
		t.Errorf("GetGeocode = %v, %v", got, ok)
	}
	if _, ok := c.GetGeocode("boston"); ok {
		t.Error("GetGeocode(boston) hit")
	}
	clk.t = clk.t.Add(24 * time.Hour)
	if _, ok := c.GetGeocode("austin"); ok {
		t.Error("GetGeocode after TTL hit")
	}
}

func TestForecastTextAge(t *testing.T) {
	c, clk := newTestCache()
	if !c.ForecastTextStale("k") {
		t.Error("missing forecast text should be stale")
	}

	orig := &models.WeatherData{Location: models.Location{Name: "Houston"}}
	c.SetForecast("k", orig)
	if c.ForecastTextStale("k") {
		t.Error("fresh forecast text reported stale")
	}

	clk.t = clk.t.Add(time.Hour)
	if !c.ForecastTextStale("k") {
		t.Error("hour-old forecast text not stale")
	}

	periods := []models.ForecastPeriod{{Name: "Tonight"}}
	c.UpdateForecastText("k", periods)
	if c.ForecastTextStale("k") {
		t.Error("updated forecast text reported stale")
	}
	got := c.GetForecast("k")
	if len(got.ForecastText) != 1 || got.Location.Name != "Houston" {
		t.Errorf("forecast = %+v", got)
	}
	if orig.ForecastText != nil {
		t.Error("previous forecast value was mutated")
	}
}

func TestClearForecast(t *testing.T) {
	c, _ := newTestCache()
	c.SetForecast("a", &models.WeatherData{})
	c.SetForecast("b", &models.WeatherData{})

	c.ClearForecast("a")
	if c.GetForecast("a") != nil || c.GetForecast("b") == nil {
		t.Error("ClearForecast(a) cleared wrong entries")
	}
	c.ClearForecast("")
	if c.GetForecast("b") != nil {
		t.Error("ClearForecast(\"\") left entries")
	}
}
