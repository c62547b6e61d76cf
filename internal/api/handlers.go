package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iop-forecast-server/internal/domain"
	"github.com/iop-forecast-server/internal/service"
)

const apiVersion = "1.0.0"

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   apiVersion,
	}

	if s.dbHealth != nil {
		if err := s.dbHealth.Health(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unreachable"
		} else {
			body["database"] = "healthy"
		}
	}

	c.JSON(status, body)
}

// handleForecast computes the 24-hour forecast for the posted attribute
// snapshot. Identical snapshots are served from the cache when one is
// configured; each freshly computed forecast is persisted best-effort and
// its record ID exposed in the X-Forecast-ID header.
func (s *Server) handleForecast(c *gin.Context) {
	attrs, req, ok := s.parseRequest(c)
	if !ok {
		return
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(c.Request.Context(), attrs); err == nil && cached != nil {
			c.Header("X-Cache", "hit")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	resp := s.engine.Compute(attrs)

	if s.cache != nil {
		if err := s.cache.Set(c.Request.Context(), attrs, &resp); err != nil {
			s.log.WithError(err).Warn("Failed to cache forecast")
		}
	}

	if s.history != nil {
		record := &domain.ForecastRecord{
			ID:           uuid.New().String(),
			PatientLabel: req.PatientLabel,
			Attributes:   attrs,
			Response:     resp,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.history.Save(c.Request.Context(), record); err != nil {
			s.log.WithError(err).WithField("forecast_id", record.ID).
				Warn("Failed to persist forecast")
		} else {
			c.Header("X-Forecast-ID", record.ID)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleRisk computes the instantaneous risk assessment without generating
// an hourly curve.
func (s *Server) handleRisk(c *gin.Context) {
	attrs, _, ok := s.parseRequest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.scorer.Compute(attrs))
}

// handleGetForecast returns a previously stored forecast by record ID.
func (s *Server) handleGetForecast(c *gin.Context) {
	if s.history == nil {
		s.errorJSON(c, http.StatusNotFound, "forecast history is disabled")
		return
	}

	id := c.Param("id")
	record, err := s.history.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.errorJSON(c, http.StatusNotFound, "forecast not found")
			return
		}
		s.log.WithError(err).WithField("forecast_id", id).Error("History lookup failed")
		s.errorJSON(c, http.StatusInternalServerError, "failed to load forecast")
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleListForecasts returns the most recent stored forecasts, newest
// first. The limit query parameter caps the page size.
func (s *Server) handleListForecasts(c *gin.Context) {
	if s.history == nil {
		s.errorJSON(c, http.StatusNotFound, "forecast history is disabled")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.history.List(c.Request.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("History list failed")
		s.errorJSON(c, http.StatusInternalServerError, "failed to list forecasts")
		return
	}
	if records == nil {
		records = []*domain.ForecastRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"forecasts": records,
		"count":     len(records),
	})
}

// handleExportForecasts streams the stored history as a JSON array.
func (s *Server) handleExportForecasts(c *gin.Context) {
	if s.history == nil {
		s.errorJSON(c, http.StatusNotFound, "forecast history is disabled")
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="forecasts.json"`)
	c.Status(http.StatusOK)

	if err := s.history.Export(c.Request.Context(), c.Writer); err != nil {
		s.log.WithError(err).Error("History export failed")
	}
}

// parseRequest binds and validates the request body. On failure the error
// response has already been written and ok is false.
func (s *Server) parseRequest(c *gin.Context) (domain.PatientAttributes, *service.ForecastRequest, bool) {
	var req service.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid JSON body")
		return domain.PatientAttributes{}, nil, false
	}

	attrs, err := s.parser.Parse(&req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          verr.Message,
				"field":          verr.Field,
				"correlation_id": c.GetString("correlation_id"),
				"timestamp":      time.Now().UTC().Format(time.RFC3339),
			})
			return domain.PatientAttributes{}, nil, false
		}
		s.errorJSON(c, http.StatusBadRequest, err.Error())
		return domain.PatientAttributes{}, nil, false
	}

	s.log.WithFields(logrus.Fields{
		"correlation_id": c.GetString("correlation_id"),
		"age":            attrs.Age,
		"medication":     attrs.Medication,
	}).Debug("Parsed patient attributes")

	return attrs, &req, true
}

func (s *Server) errorJSON(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"error":          message,
		"correlation_id": c.GetString("correlation_id"),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
