package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
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
	DefaultEliaBaseURL = "https://opendata.elia.be/api/v2/catalog"
	ProviderElia       = "elia"

	eliaDateLayout = "2006-01-02 15:04:05"
	eliaTimeField  = "datetime"
	eliaSubIDField = "region"
)

// EliaClient queries the json export of Elia open data datasets
type EliaClient struct {
	BaseURL    string
	HTTPClient *http.Client

	logger *logrus.Logger
}

// NewEliaClient returns an Elia client. If baseURL is empty the public catalog is used.
func NewEliaClient(baseURL string, logger *logrus.Logger) *EliaClient {
	if baseURL == "" {
		baseURL = DefaultEliaBaseURL
	}
	return &EliaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: loggerOrDiscard(logger),
	}
}

// ExportURL builds the json export url of a dataset filtered to the instants start and end
func (c *EliaClient) ExportURL(datasetID string, start, end time.Time) string {
	where := fmt.Sprintf("datetime in [date'%s' .. date'%s']",
		start.Format(eliaDateLayout), end.Format(eliaDateLayout))
	q := url.Values{}
	q.Set("where", where)
	return fmt.Sprintf("%s/datasets/%s/exports/json?%s", c.BaseURL, url.PathEscape(datasetID), q.Encode())
}

// FetchGridSeries returns the rows of a dataset between start and end sorted by
// time. field names the value column of the dataset. Timestamps keep their wall clock with
// the offset removed.
func (c *EliaClient) FetchGridSeries(ctx context.Context, datasetID, field string, start, end time.Time) ([]GridRecord, error) {
	if datasetID == "" {
		return nil, ErrMissingDatasetID
	}
	if field == "" {
		return nil, ErrMissingValueField
	}
	if start.After(end) {
		return nil, ErrStartAfterEnd
	}

	ctx, span := tracer.Start(ctx, "elia.fetch", trace.WithAttributes(
		attribute.String("dataset", datasetID),
		attribute.String("field", field),
	))
	defer span.End()

	reqURL := c.ExportURL(datasetID, start, end)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create elia request, %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log := c.logger.WithFields(logrus.Fields{
		logging.FieldProvider: ProviderElia,
		"dataset":             datasetID,
	})

	reqStart := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unable to query elia dataset %s, %w", datasetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(ProviderElia, resp)
		span.SetStatus(codes.Error, apiErr.Error())
		log.WithField("status", resp.StatusCode).Warn("elia request failed")
		return nil, apiErr
	}

	var rows []map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unable to decode elia dataset %s, %w", datasetID, err)
	}

	records, err := parseEliaRows(rows, field)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(records)))
	log.WithFields(logrus.Fields{
		logging.FieldRows:     len(records),
		logging.FieldDuration: time.Since(reqStart),
	}).Debug("fetched elia dataset")
	return records, nil
}

func parseEliaRows(rows []map[string]json.RawMessage, field string) ([]GridRecord, error) {
	records := make([]GridRecord, 0, len(rows))
	for i, row := range rows {
		rawTime, exists := row[eliaTimeField]
		if !exists {
			return nil, fmt.Errorf("row %d has no %s, %w", i, eliaTimeField, ErrMalformedRecord)
		}
		var ts string
		if err := json.Unmarshal(rawTime, &ts); err != nil {
			return nil, fmt.Errorf("row %d %s, %w", i, eliaTimeField, ErrMalformedRecord)
		}
		t, err := ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("row %d, %w", i, err)
		}

		rec := GridRecord{Datetime: t}
		if rawSubID, exists := row[eliaSubIDField]; exists {
			var subID *string
			if err := json.Unmarshal(rawSubID, &subID); err != nil {
				return nil, fmt.Errorf("row %d %s, %w", i, eliaSubIDField, ErrMalformedRecord)
			}
			if subID != nil {
				rec.SubID = *subID
			}
		}
		if rawVal, exists := row[field]; exists {
			var val *float64
			if err := json.Unmarshal(rawVal, &val); err != nil {
				return nil, fmt.Errorf("row %d %s, %w", i, field, ErrMalformedRecord)
			}
			if val != nil {
				rec.Value = *val
				rec.Valid = true
			}
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Datetime.Before(records[j].Datetime)
	})
	return records, nil
}
