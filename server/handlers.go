package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aouyang1/grid-forecaster/export"
	"github.com/aouyang1/grid-forecaster/frame"
	"github.com/aouyang1/grid-forecaster/pipeline"
	"github.com/aouyang1/grid-forecaster/series"
)

var ErrInvalidParam = errors.New("invalid query parameter")

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"

	// HeaderRunID carries the id of the run behind a response
	HeaderRunID = "X-Run-ID"
)

// ForecastResponse is the json body of a forecast run
type ForecastResponse struct {
	RunID        uuid.UUID                    `json:"run_id"`
	Metric       string                       `json:"metric"`
	Mode         string                       `json:"mode"`
	Input        series.Series                `json:"input"`
	Forecast     []frame.DisplayRow           `json:"forecast"`
	Coefficients []frame.RegressorCoefficient `json:"coefficients"`
}

type regressorInfo struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listMetrics(c *gin.Context) {
	regs := make([]regressorInfo, 0, len(frame.Regressors))
	for _, r := range frame.Regressors {
		regs = append(regs, regressorInfo{Name: r.String(), Column: r.Column()})
	}
	c.JSON(http.StatusOK, gin.H{
		"metrics":    pipeline.Metrics(),
		"modes":      []string{pipeline.Univariate.String(), pipeline.Multivariate.String()},
		"regressors": regs,
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q, %w", key, raw, ErrInvalidParam)
	}
	return v, nil
}

// parseRequest reads metric, mode, regressors, historical_days and horizon_days from the query
// falling back to the configured defaults
func (s *Server) parseRequest(c *gin.Context) (pipeline.Request, error) {
	metric, err := pipeline.ParseMetric(c.DefaultQuery("metric", pipeline.Load.String()))
	if err != nil {
		return pipeline.Request{}, err
	}
	mode, err := pipeline.ParseMode(c.Query("mode"))
	if err != nil {
		return pipeline.Request{}, err
	}
	regs, err := frame.ParseRegressors(c.Query("regressors"))
	if err != nil {
		return pipeline.Request{}, err
	}
	days, err := queryInt(c, "historical_days", s.cfg.Forecast.HistoricalDays)
	if err != nil {
		return pipeline.Request{}, err
	}
	horizon, err := queryInt(c, "horizon_days", s.cfg.Forecast.HorizonDays)
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		Metric:         metric,
		Mode:           mode,
		Regressors:     regs,
		HistoricalDays: days,
		HorizonDays:    horizon,
		Latitude:       s.cfg.Location.Latitude,
		Longitude:      s.cfg.Location.Longitude,
	}
	return req, req.Validate()
}

// run parses the request and runs the pipeline writing the error response on failure. Each call
// is a fresh run against the sources, so two downloads of one request may differ when upstream
// data moved in between. The run id is returned in the X-Run-ID header to tell them apart.
func (s *Server) run(c *gin.Context) (*pipeline.Result, bool) {
	req, err := s.parseRequest(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return nil, false
	}
	res, err := s.orch.Run(c.Request.Context(), req)
	if err != nil {
		status, code, msg := statusFor(err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"status": status,
			"code":   code,
		}).Warn("forecast request failed")
		abortWithError(c, status, code, msg)
		return nil, false
	}
	c.Header(HeaderRunID, res.RunID.String())
	return res, true
}

func (s *Server) forecast(c *gin.Context) {
	res, ok := s.run(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ForecastResponse{
		RunID:        res.RunID,
		Metric:       res.Request.Metric.String(),
		Mode:         res.Request.Mode.String(),
		Input:        res.Input,
		Forecast:     res.Display,
		Coefficients: res.Coefficients,
	})
}

func (s *Server) attachment(c *gin.Context, kind string, body []byte, err error) {
	if err != nil {
		s.logger.WithError(err).WithField("kind", kind).Error("unable to write csv")
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "unable to write csv")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(kind, s.Now())))
	c.Data(http.StatusOK, contentTypeCSV, body)
}

func (s *Server) inputCSV(c *gin.Context) {
	res, ok := s.run(c)
	if !ok {
		return
	}
	body, err := export.InputCSV(res.Input, res.ValueName)
	s.attachment(c, export.KindInput, body, err)
}

func (s *Server) forecastCSV(c *gin.Context) {
	res, ok := s.run(c)
	if !ok {
		return
	}
	body, err := export.ForecastCSV(res.Forecast)
	s.attachment(c, export.KindForecast, body, err)
}

func (s *Server) coefficientsCSV(c *gin.Context) {
	res, ok := s.run(c)
	if !ok {
		return
	}
	body, err := export.CoefficientsCSV(res.Coefficients)
	s.attachment(c, export.KindCoefficients, body, err)
}

func (s *Server) chart(c *gin.Context) {
	res, ok := s.run(c)
	if !ok {
		return
	}
	c.Header("Content-Type", contentTypeHTML)
	c.Status(http.StatusOK)
	if err := res.Charts.Render(c.Writer); err != nil {
		s.logger.WithError(err).Error("unable to render chart")
	}
}
