package api

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lox/weatherpwa/internal/compare"
	"github.com/lox/weatherpwa/internal/models"
)

const healthErrorLimit = 10

type coordQuery struct {
	Lat float64 `validate:"latitude"`
	Lon float64 `validate:"longitude"`
}

// parseCoords reads and validates a lat/lon pair from the named query
// parameters.
func parseCoords(c *fiber.Ctx, latParam, lonParam string) (models.Coordinates, error) {
	latStr, lonStr := c.Query(latParam), c.Query(lonParam)
	if latStr == "" || lonStr == "" {
		return models.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, latParam+" and "+lonParam+" required")
	}
	var q coordQuery
	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return models.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+latParam)
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return models.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+lonParam)
	}
	if err := validate.Struct(q); err != nil {
		return models.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, latParam+"/"+lonParam+" out of range")
	}
	return models.Coordinates{Lat: q.Lat, Lon: q.Lon}, nil
}

// weatherResponse is the cached forecast with current conditions swapped
// in when a fresh on-demand value exists.
type weatherResponse struct {
	models.WeatherData
	Current any `json:"current"`
}

func (s *Server) handleWeather(c *fiber.Ctx) error {
	coords, err := parseCoords(c, "lat", "lon")
	if err != nil {
		return err
	}
	key := coords.Key()
	forecast := s.Cache.GetForecast(key)
	current := s.Cache.GetCurrent(key)

	switch {
	case forecast == nil && current == nil:
		return fiber.NewError(fiber.StatusServiceUnavailable, "No data available yet")
	case forecast == nil:
		return c.JSON(fiber.Map{"current": current})
	}

	resp := weatherResponse{WeatherData: *forecast, Current: forecast.Current}
	if current != nil {
		resp.Current = current
	}
	return c.JSON(resp)
}

func (s *Server) handleRefreshCurrent(c *fiber.Ctx) error {
	return c.JSON(s.Refresher.RefreshCurrent(c.UserContext()))
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.JSON([]models.Location{})
	}
	if cached, ok := s.Cache.GetGeocode(q); ok {
		return c.JSON(cached)
	}

	results, err := s.Geocoder.SearchLocations(c.UserContext(), q)
	if err != nil {
		log.Printf("api: geocode %q: %v", q, err)
		return c.JSON([]models.Location{})
	}
	s.Cache.SetGeocode(q, results)
	return c.JSON(results)
}

func (s *Server) handleSettings(c *fiber.Ctx) error {
	settings, err := s.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	return c.JSON(settings)
}

func validateLocation(l models.Location) error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("location name required")
	}
	if err := validate.Struct(coordQuery{Lat: l.Lat, Lon: l.Lon}); err != nil {
		return fmt.Errorf("location %q: coordinates out of range", l.Name)
	}
	return nil
}

func (s *Server) handleSaveLocations(c *fiber.Ctx) error {
	var body struct {
		Locations *[]models.Location `json:"locations"`
	}
	if err := c.BodyParser(&body); err != nil || body.Locations == nil {
		return fiber.NewError(fiber.StatusBadRequest, "locations required")
	}
	for _, l := range *body.Locations {
		if err := validateLocation(l); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	added, err := s.Store.SaveLocations(*body.Locations)
	if err != nil {
		return fmt.Errorf("save locations: %w", err)
	}
	if len(added) > 0 {
		s.Refresher.OnLocationsSaved(c.UserContext(), added)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleSaveUnits(c *fiber.Ctx) error {
	var body struct {
		Units string `json:"units" validate:"required,oneof=imperial metric"`
	}
	if err := c.BodyParser(&body); err != nil || body.Units == "" {
		return fiber.NewError(fiber.StatusBadRequest, "units required")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "units must be imperial or metric")
	}
	if err := s.Store.SaveUnits(body.Units); err != nil {
		return fmt.Errorf("save units: %w", err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleSaveComparisons(c *fiber.Ctx) error {
	var body struct {
		Comparisons *[]models.ComparisonPref `json:"comparisons"`
	}
	if err := c.BodyParser(&body); err != nil || body.Comparisons == nil {
		return fiber.NewError(fiber.StatusBadRequest, "comparisons required")
	}
	for _, p := range *body.Comparisons {
		for _, l := range []models.Location{p.Loc1, p.Loc2} {
			if err := validateLocation(l); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		if err := checkCriteria(p.HiddenMetrics); err != nil {
			return err
		}
	}
	if err := s.Store.SaveComparisons(*body.Comparisons); err != nil {
		return fmt.Errorf("save comparisons: %w", err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	coords, err := parseCoords(c, "lat", "lon")
	if err != nil {
		return err
	}
	records, err := s.Store.GetHistory(coords.Key())
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	return c.JSON(records)
}

func (s *Server) handleAlerts(c *fiber.Ctx) error {
	coords, err := parseCoords(c, "lat", "lon")
	if err != nil {
		return err
	}
	alerts, err := s.Alerts.FetchAlerts(c.UserContext(), coords.Lat, coords.Lon)
	if err != nil {
		log.Printf("api: alerts %s: %v", coords.Key(), err)
		alerts = []models.Alert{}
	}
	return c.JSON(alerts)
}

func checkCriteria(keys []string) error {
	if err := compare.CheckCriteria(keys); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func (s *Server) handleCompare(c *fiber.Ctx) error {
	a, err := parseCoords(c, "lat1", "lon1")
	if err != nil {
		return err
	}
	b, err := parseCoords(c, "lat2", "lon2")
	if err != nil {
		return err
	}

	var hidden []string
	if h := c.Query("hide"); h != "" {
		for _, k := range strings.Split(h, ",") {
			if k = strings.TrimSpace(k); k != "" {
				hidden = append(hidden, k)
			}
		}
	}
	if err := checkCriteria(hidden); err != nil {
		return err
	}

	result, err := s.Comparer.Compare(c.UserContext(), a, b, hidden)
	if errors.Is(err, compare.ErrLocationNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	return c.JSON(result)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	errs, err := s.Store.GetRecentIngestErrors(healthErrorLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "recent_errors": errs})
}
