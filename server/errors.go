package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/grid-forecaster/datasource"
	"github.com/aouyang1/grid-forecaster/forecast"
	"github.com/aouyang1/grid-forecaster/frame"
	"github.com/aouyang1/grid-forecaster/pipeline"
)

const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeConfiguration    = "CONFIGURATION_ERROR"
	CodeForecast         = "FORECAST_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: msg},
	})
}

// statusFor maps a run failure onto a status, code and message. Only guidance errors expose
// their message to the caller.
func statusFor(err error) (int, string, string) {
	switch {
	case isGuidance(err):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()
	case errors.Is(err, forecast.ErrInsufficientTrainingData):
		return http.StatusUnprocessableEntity, CodeInsufficientData, "not enough data to fit a forecast for the requested window"
	case errors.Is(err, datasource.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, CodeConfiguration, "weather provider is not configured"
	case pipeline.IsStage(err, pipeline.StageFetch):
		return http.StatusBadGateway, CodeUpstream, "unable to fetch data from the data provider"
	default:
		return http.StatusInternalServerError, CodeForecast, "unable to compute forecast"
	}
}

var guidanceErrors = []error{
	pipeline.ErrUnknownMetric,
	pipeline.ErrUnknownMode,
	pipeline.ErrNoRegressors,
	pipeline.ErrHistoricalDaysRange,
	pipeline.ErrHorizonDaysRange,
	pipeline.ErrInvalidLocation,
	frame.ErrUnknownRegressor,
	ErrInvalidParam,
}

func isGuidance(err error) bool {
	for _, target := range guidanceErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
