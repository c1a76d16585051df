// Package datasource fetches Belgian grid series from the Elia open data platform and
// weather forecasts from the Rebase weather API.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var (
	ErrMissingAPIKey      = errors.New("missing weather api key")
	ErrMissingDatasetID   = errors.New("missing dataset id")
	ErrMissingValueField  = errors.New("missing dataset value field")
	ErrStartAfterEnd      = errors.New("start time is after end time")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrUnknownTimeFormat  = errors.New("unknown timestamp format")
	ErrUnexpectedResponse = errors.New("unexpected response payload")
)

const (
	DefaultTimeout = 30 * time.Second

	// maxErrorBody limits how much of a failed response body is kept on an APIError
	maxErrorBody = 4096

	tracerName = "github.com/aouyang1/grid-forecaster/datasource"
)

var tracer = otel.Tracer(tracerName)

// GridRecord is one row of an Elia dataset. SubID is the region for the regional solar and
// wind datasets and empty for the national load. Valid is false when the value was null.
type GridRecord struct {
	Datetime time.Time `json:"datetime"`
	SubID    string    `json:"sub_id"`
	Value    float64   `json:"value"`
	Valid    bool      `json:"valid"`
}

// WeatherRecord is one forecasted weather point. Missing values are zero.
type WeatherRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	CloudCover  float64   `json:"cloud_cover"`
	WindSpeed   float64   `json:"wind_speed"`
	Temperature float64   `json:"temperature"`
}

// Source provides the grid and weather data a forecast is built from
type Source interface {
	FetchGridSeries(ctx context.Context, datasetID, field string, start, end time.Time) ([]GridRecord, error)
	FetchWeather(ctx context.Context, start, end time.Time, lat, lon float64) ([]WeatherRecord, error)
}

// Client composes the Elia and Rebase clients into a Source
type Client struct {
	Elia   *EliaClient
	Rebase *RebaseClient
}

// NewClient returns a Source backed by both providers
func NewClient(elia *EliaClient, rebase *RebaseClient) *Client {
	return &Client{Elia: elia, Rebase: rebase}
}

func (c *Client) FetchGridSeries(ctx context.Context, datasetID, field string, start, end time.Time) ([]GridRecord, error) {
	return c.Elia.FetchGridSeries(ctx, datasetID, field, start, end)
}

func (c *Client) FetchWeather(ctx context.Context, start, end time.Time, lat, lon float64) ([]WeatherRecord, error) {
	return c.Rebase.FetchWeather(ctx, start, end, lat, lon)
}

// APIError is returned when a provider responds with a non 2xx status
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Status)
}

// IsAPIError returns the APIError wrapped by err if any
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func newAPIError(provider string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a provider timestamp and strips its offset, keeping the wall clock
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Naive(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q, %w", s, ErrUnknownTimeFormat)
}

// Naive re-expresses the wall clock of t in its own offset as a UTC time
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func loggerOrDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
