package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aouyang1/grid-forecaster/logging"
)

const (
	DefaultRebaseBaseURL = "https://api.rebase.energy"
	ProviderRebase       = "rebase"

	RebaseModel             = "DWD_ICON-EU"
	RebaseReferenceTimeFreq = "24H"
	RebaseForecastHorizon   = "latest"
	RebaseVariables         = "Temperature, WindSpeed, CloudCover"

	rebaseQueryPath  = "/weather/v2/query"
	rebaseTimeLayout = "2006-01-02 15:04:05"
)

// RebaseClient queries point weather forecasts from the Rebase weather API
type RebaseClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	logger *logrus.Logger
}

// NewRebaseClient returns a Rebase client. If baseURL is empty the public api is used.
func NewRebaseClient(apiKey, baseURL string, logger *logrus.Logger) *RebaseClient {
	if baseURL == "" {
		baseURL = DefaultRebaseBaseURL
	}
	return &RebaseClient{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: loggerOrDiscard(logger),
	}
}

// QueryParams returns the query of a weather request
func QueryParams(start, end time.Time, lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("model", RebaseModel)
	q.Set("start-date", start.Format(rebaseTimeLayout))
	q.Set("end-date", end.Format(rebaseTimeLayout))
	q.Set("reference-time-freq", RebaseReferenceTimeFreq)
	q.Set("forecast-horizon", RebaseForecastHorizon)
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("variables", RebaseVariables)
	return q
}

type rebaseRow struct {
	RefDatetime   string   `json:"ref_datetime"`
	ValidDatetime string   `json:"valid_datetime"`
	Temperature   *float64 `json:"Temperature"`
	WindSpeed     *float64 `json:"WindSpeed"`
	CloudCover    *float64 `json:"CloudCover"`
}

func fmtNullable(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// FetchWeather returns the latest forecast of temperature, wind speed and cloud cover between
// start and end at the given coordinates. Exact duplicate rows keep their last occurrence and
// missing values are zero-filled.
func (c *RebaseClient) FetchWeather(ctx context.Context, start, end time.Time, lat, lon float64) ([]WeatherRecord, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if start.After(end) {
		return nil, ErrStartAfterEnd
	}

	ctx, span := tracer.Start(ctx, "rebase.fetch", trace.WithAttributes(
		attribute.Float64("latitude", lat),
		attribute.Float64("longitude", lon),
	))
	defer span.End()

	reqURL := c.BaseURL + rebaseQueryPath + "?" + QueryParams(start, end, lat, lon).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create rebase request, %w", err)
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Accept", "application/json")

	log := c.logger.WithField(logging.FieldProvider, ProviderRebase)

	reqStart := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unable to query rebase weather, %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(ProviderRebase, resp)
		span.SetStatus(codes.Error, apiErr.Error())
		log.WithField("status", resp.StatusCode).Warn("rebase request failed")
		return nil, apiErr
	}

	var rows []rebaseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unable to decode rebase weather, %w", err)
	}

	records, filled, err := parseRebaseRows(rows)
	if err != nil {
		return nil, err
	}
	if filled > 0 {
		log.WithField("filled", filled).Warn("zero-filled missing weather values")
	}
	span.SetAttributes(attribute.Int("rows", len(records)), attribute.Int("zero_filled", filled))
	log.WithFields(logrus.Fields{
		logging.FieldRows:     len(records),
		logging.FieldDuration: time.Since(reqStart),
	}).Debug("fetched rebase weather")
	return records, nil
}

type weatherRow struct {
	t           time.Time
	temperature *float64
	windSpeed   *float64
	cloudCover  *float64
}

// key identifies a row once the reference time is dropped. Nulls compare equal.
func (r weatherRow) key() string {
	return strings.Join([]string{
		r.t.Format(time.RFC3339Nano),
		fmtNullable(r.temperature),
		fmtNullable(r.windSpeed),
		fmtNullable(r.cloudCover),
	}, "|")
}

// parseRebaseRows drops exact duplicates keeping the last occurrence, sorts the rows by time
// keeping the provider order within a timestamp and returns the number of zero-filled values
func parseRebaseRows(rows []rebaseRow) ([]WeatherRecord, int, error) {
	parsed := make([]weatherRow, 0, len(rows))
	for i, row := range rows {
		if row.ValidDatetime == "" {
			return nil, 0, fmt.Errorf("row %d has no valid_datetime, %w", i, ErrMalformedRecord)
		}
		t, err := ParseTimestamp(row.ValidDatetime)
		if err != nil {
			return nil, 0, fmt.Errorf("row %d, %w", i, err)
		}
		parsed = append(parsed, weatherRow{
			t:           t,
			temperature: row.Temperature,
			windSpeed:   row.WindSpeed,
			cloudCover:  row.CloudCover,
		})
	}

	seen := make(map[string]struct{}, len(parsed))
	kept := make([]weatherRow, 0, len(parsed))
	for i := len(parsed) - 1; i >= 0; i-- {
		k := parsed[i].key()
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, parsed[i])
	}
	slices.Reverse(kept)
	slices.SortStableFunc(kept, func(a, b weatherRow) int {
		return a.t.Compare(b.t)
	})

	var filled int
	fill := func(v *float64) float64 {
		if v == nil {
			filled++
			return 0
		}
		return *v
	}

	records := make([]WeatherRecord, 0, len(kept))
	for _, row := range kept {
		records = append(records, WeatherRecord{
			Timestamp:   row.t,
			Temperature: fill(row.temperature),
			WindSpeed:   fill(row.windSpeed),
			CloudCover:  fill(row.cloudCover),
		})
	}
	return records, filled, nil
}
