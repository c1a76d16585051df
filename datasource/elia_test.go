package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEliaExportURL(t *testing.T) {
	c := NewEliaClient("", nil)
	u := c.ExportURL("ods003",
		time.Date(2025, 7, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 8, 13, 0, 0, 0, time.UTC),
	)
	assert.Equal(t,
		"https://opendata.elia.be/api/v2/catalog/datasets/ods003/exports/json?where=datetime+in+%5Bdate%272025-07-01+13%3A00%3A00%27+..+date%272025-07-08+13%3A00%3A00%27%5D",
		u,
	)
}

func TestEliaFetchGridSeries(t *testing.T) {
	var gotPath, gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWhere = r.URL.Query().Get("where")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"datetime": "2025-07-01T02:15:00+02:00", "region": "Flanders", "mostrecentforecast": 2.5},
			{"datetime": "2025-07-01T02:00:00+02:00", "region": "Wallonia", "mostrecentforecast": 1.0},
			{"datetime": "2025-07-01T02:00:00+02:00", "region": "Flanders", "mostrecentforecast": null},
			{"datetime": "2025-07-01T02:00:00+02:00", "region": null, "mostrecentforecast": 3.0}
		]`))
	}))
	defer srv.Close()

	c := NewEliaClient(srv.URL+"/", nil)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	records, err := c.FetchGridSeries(context.Background(), "ods032", "mostrecentforecast", start, start.Add(24*time.Hour))
	require.Nil(t, err)

	assert.Equal(t, "/datasets/ods032/exports/json", gotPath)
	assert.Equal(t, "datetime in [date'2025-07-01 00:00:00' .. date'2025-07-02 00:00:00']", gotWhere)

	two := time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC)
	expected := []GridRecord{
		{Datetime: two, SubID: "Wallonia", Value: 1.0, Valid: true},
		{Datetime: two, SubID: "Flanders"},
		{Datetime: two, Value: 3.0, Valid: true},
		{Datetime: two.Add(15 * time.Minute), SubID: "Flanders", Value: 2.5, Valid: true},
	}
	assert.Equal(t, expected, records)
}

func TestEliaFetchGridSeriesErrors(t *testing.T) {
	testData := map[string]struct {
		status  int
		body    string
		dataset string
		field   string
		apiErr  bool
		err     error
	}{
		"server error": {
			status:  http.StatusInternalServerError,
			body:    "boom",
			dataset: "ods003",
			field:   "eliagridload",
			apiErr:  true,
		},
		"malformed json": {
			status:  http.StatusOK,
			body:    `{"not": "an array"`,
			dataset: "ods003",
			field:   "eliagridload",
		},
		"missing datetime": {
			status:  http.StatusOK,
			body:    `[{"eliagridload": 1}]`,
			dataset: "ods003",
			field:   "eliagridload",
			err:     ErrMalformedRecord,
		},
		"bad timestamp": {
			status:  http.StatusOK,
			body:    `[{"datetime": "yesterday", "eliagridload": 1}]`,
			dataset: "ods003",
			field:   "eliagridload",
			err:     ErrUnknownTimeFormat,
		},
		"no dataset": {
			field: "eliagridload",
			err:   ErrMissingDatasetID,
		},
		"no field": {
			dataset: "ods003",
			err:     ErrMissingValueField,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(td.status)
				_, _ = w.Write([]byte(td.body))
			}))
			defer srv.Close()

			c := NewEliaClient(srv.URL, nil)
			start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
			_, err := c.FetchGridSeries(context.Background(), td.dataset, td.field, start, start.Add(time.Hour))
			require.NotNil(t, err)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
			}
			apiErr, ok := IsAPIError(err)
			assert.Equal(t, td.apiErr, ok)
			if td.apiErr {
				assert.Equal(t, ProviderElia, apiErr.Provider)
				assert.Equal(t, td.status, apiErr.StatusCode)
				assert.Equal(t, td.body, apiErr.Body)
			}
		})
	}
}

func TestEliaEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewEliaClient(srv.URL, nil)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	records, err := c.FetchGridSeries(context.Background(), "ods003", "eliagridload", start, start)
	require.Nil(t, err)
	assert.Empty(t, records)

	_, err = c.FetchGridSeries(context.Background(), "ods003", "eliagridload", start.Add(time.Hour), start)
	assert.ErrorIs(t, err, ErrStartAfterEnd)
}

func TestParseTimestamp(t *testing.T) {
	testData := map[string]struct {
		input    string
		expected time.Time
		err      error
	}{
		"rfc3339 offset": {
			input:    "2025-03-30T03:00:00+02:00",
			expected: time.Date(2025, 3, 30, 3, 0, 0, 0, time.UTC),
		},
		"zulu": {
			input:    "2025-03-30T01:00:00Z",
			expected: time.Date(2025, 3, 30, 1, 0, 0, 0, time.UTC),
		},
		"space offset": {
			input:    "2025-03-30 03:00:00+02:00",
			expected: time.Date(2025, 3, 30, 3, 0, 0, 0, time.UTC),
		},
		"naive": {
			input:    "2025-03-30 03:00:00",
			expected: time.Date(2025, 3, 30, 3, 0, 0, 0, time.UTC),
		},
		"invalid": {
			input: "30/03/2025",
			err:   ErrUnknownTimeFormat,
		},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := ParseTimestamp(td.input)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, res)
		})
	}
}
