package api

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/weatherpwa/internal/cache"
	"github.com/lox/weatherpwa/internal/compare"
	"github.com/lox/weatherpwa/internal/models"
	"github.com/lox/weatherpwa/internal/store"
)

var validate = validator.New()

type Refresher interface {
	RefreshCurrent(ctx context.Context) map[string]*models.CurrentConditions
	OnLocationsSaved(ctx context.Context, added []models.Location)
}

type Geocoder interface {
	SearchLocations(ctx context.Context, query string) ([]models.Location, error)
}

type AlertSource interface {
	FetchAlerts(ctx context.Context, lat, lon float64) ([]models.Alert, error)
}

type Comparer interface {
	Compare(ctx context.Context, a, b models.Coordinates, hidden []string) (*compare.Result, error)
}

type Deps struct {
	Store     *store.Store
	Cache     *cache.Cache
	Refresher Refresher
	Geocoder  Geocoder
	Alerts    AlertSource
	Comparer  Comparer
}

type Server struct {
	Deps
	port string
	app  *fiber.App
}

func NewServer(deps Deps, port string) *Server {
	s := &Server{Deps: deps, port: port}

	s.app = fiber.New(fiber.Config{
		AppName:               "weatherpwa",
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          2 * time.Minute,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(logger.New())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")
	api.Get("/weather", s.handleWeather)
	api.Post("/refresh-current", s.handleRefreshCurrent)
	api.Get("/locations/search", s.handleSearch)
	api.Get("/settings", s.handleSettings)
	api.Post("/settings/locations", s.handleSaveLocations)
	api.Post("/settings/units", s.handleSaveUnits)
	api.Post("/settings/comparisons", s.handleSaveComparisons)
	api.Get("/history", s.handleHistory)
	api.Get("/alerts", s.handleAlerts)
	api.Get("/compare", s.handleCompare)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("api: shutdown: %v", err)
		}
	}()

	log.Printf("api: listening on :%s", s.port)
	return s.app.Listen(":" + s.port)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		log.Printf("api: %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
