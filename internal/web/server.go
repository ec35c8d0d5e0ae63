// Package web serves north's JSON API with echo.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"north/internal/service"
)

type ServerConfig struct {
	Addr string

	// ReadOnly rejects every request that would change data.
	ReadOnly bool
}

// New builds an echo instance with the API routes and the request middleware.
func New(svc *service.Service, cfg ServerConfig, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	if cfg.ReadOnly {
		e.Use(readOnly())
	}

	Register(e, svc, logger)
	return e
}

// Serve runs e on addr until ctx is canceled, then shuts it down.
func Serve(ctx context.Context, e *echo.Echo, addr string, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("listening")
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			logger.WithFields(log.Fields{
				"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
				"method":    req.Method,
				"path":      req.URL.Path,
				"status":    c.Response().Status,
				"latency":   time.Since(start).String(),
			}).Debug("request")
			return nil
		}
	}
}

func readOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch strings.ToUpper(c.Request().Method) {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			if c.Path() == "/api/filter/check" {
				return next(c)
			}
			return c.JSON(http.StatusForbidden, errorBody{Error: apiError{Kind: "read_only", Message: "server is read-only"}})
		}
	}
}
