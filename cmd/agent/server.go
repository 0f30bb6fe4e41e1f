package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
)

const defaultQueryLimit = 50

type errorBody struct {
	Error string `json:"error"`
}

// cycleError carries the partial report when every enabled track failed.
type cycleError struct {
	Error  string             `json:"error"`
	Report *types.CycleReport `json:"report,omitempty"`
}

// server exposes the engine and history over HTTP.
type server struct {
	echo    *echo.Echo
	engine  interfaces.Engine
	history interfaces.HistoryStore
}

func newServer(eng interfaces.Engine, history interfaces.HistoryStore, metrics http.Handler) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if metrics == nil {
		metrics = promhttp.Handler()
	}
	s := &server{echo: e, engine: eng, history: history}
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics))

	g := e.Group("/v1/decisions")
	g.POST("/cycle", s.runCycle)
	g.GET("", s.listDecisions)
	g.GET("/:id", s.getDecision)
	return s
}

func (s *server) start(ctx context.Context, addr string) {
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "HTTP server stopped", err)
		}
	}()
}

func (s *server) stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) runCycle(c echo.Context) error {
	var params types.CycleParams
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&params); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid cycle parameters"})
		}
	}
	if params.From != 0 && params.To != 0 && params.From >= params.To {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "from must be before to"})
	}

	report, err := s.engine.RunDecisionCycle(c.Request().Context(), &params)
	if err == nil && report != nil {
		return c.JSON(http.StatusOK, report)
	}

	status := http.StatusBadGateway
	if errors.Is(err, types.ErrNoProviders) {
		status = http.StatusServiceUnavailable
	}
	msg := "decision cycle failed"
	if err != nil {
		msg = err.Error()
	}
	return c.JSON(status, cycleError{Error: msg, Report: report})
}

func (s *server) listDecisions(c echo.Context) error {
	f := types.HistoryFilter{Pair: c.QueryParam("pair"), Limit: defaultQueryLimit}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
		}
		f.Limit = n
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "since must be RFC3339"})
		}
		f.Since = t
	}

	recs, err := s.history.Query(c.Request().Context(), f)
	if err != nil {
		logger.ErrorWithErr(c.Request().Context(), "History query failed", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "history unavailable"})
	}
	if recs == nil {
		recs = []types.DecisionRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *server) getDecision(c echo.Context) error {
	rec, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, types.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, errorBody{Error: "decision not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "history unavailable"})
	}
	return c.JSON(http.StatusOK, rec)
}
