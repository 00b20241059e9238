// Package usno fetches daily sun and moon data from the US Naval
// Observatory.
package usno

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lox/weatherpwa/internal/httputil"
	"github.com/lox/weatherpwa/internal/models"
)

const DefaultBaseURL = "https://aa.usno.navy.mil/api/rstt/oneday"

type Client struct {
	baseURL string
	http    *httputil.Client
	now     func() time.Time
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    httputil.New(httputil.Options{Provider: "usno", Timeout: timeout}),
		now:     time.Now,
	}
}

type phenomenon struct {
	Phen string `json:"phen"`
	Time string `json:"time"`
}

type oneDay struct {
	Properties struct {
		Data struct {
			SunData      []phenomenon `json:"sundata"`
			MoonData     []phenomenon `json:"moondata"`
			CurPhase     string       `json:"curphase"`
			FracIllum    string       `json:"fracillum"`
			ClosestPhase *struct {
				Phase string `json:"phase"`
				Year  int    `json:"year"`
				Month int    `json:"month"`
				Day   int    `json:"day"`
			} `json:"closestphase"`
		} `json:"data"`
	} `json:"properties"`
}

// FetchSunMoon returns today's sun and moon times at lat/lon, reported in
// the UTC offset currently in effect for timezone. On error the returned
// SunMoon is empty.
func (c *Client) FetchSunMoon(ctx context.Context, lat, lon float64, timezone string) (models.SunMoon, error) {
	now := c.now()
	v := url.Values{}
	v.Set("coords", models.Coordinates{Lat: lat, Lon: lon}.Key())
	if loc, err := time.LoadLocation(timezone); err == nil && timezone != "" {
		now = now.In(loc)
		_, offset := now.Zone()
		v.Set("tz", strconv.FormatFloat(float64(offset)/3600, 'f', -1, 64))
	}
	v.Set("date", now.Format(models.DateLayout))

	var resp oneDay
	if err := c.http.GetJSON(ctx, "oneday", c.baseURL+"?"+v.Encode(), &resp); err != nil {
		return models.SunMoon{}, fmt.Errorf("fetch sun/moon: %w", err)
	}
	d := resp.Properties.Data

	sun := &models.SunTimes{}
	for _, p := range d.SunData {
		switch p.Phen {
		case "Rise":
			sun.Rise = p.Time
		case "Set":
			sun.Set = p.Time
		case "Begin Civil Twilight":
			sun.Dawn = p.Time
		case "End Civil Twilight":
			sun.Dusk = p.Time
		}
	}

	moon := &models.MoonTimes{Phase: d.CurPhase, Illumination: d.FracIllum}
	for _, p := range d.MoonData {
		switch p.Phen {
		case "Rise":
			moon.Rise = p.Time
		case "Set":
			moon.Set = p.Time
		}
	}
	if cp := d.ClosestPhase; cp != nil {
		moon.NextPhase = cp.Phase
		moon.NextPhaseDate = fmt.Sprintf("%d-%02d-%02d", cp.Year, cp.Month, cp.Day)
	}

	return models.SunMoon{Sun: sun, Moon: moon}, nil
}
