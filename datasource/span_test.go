package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spanRecorder = tracetest.NewSpanRecorder()
	installOnce  sync.Once
)

func recordSpans() *tracetest.SpanRecorder {
	installOnce.Do(func() {
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	})
	return spanRecorder
}

func TestEliaFetchSpanStatus(t *testing.T) {
	rec := recordSpans()

	testData := map[string]struct {
		body   string
		status codes.Code
	}{
		"valid rows": {
			body:   `[{"datetime": "2025-07-01T02:00:00+02:00", "eliagridload": 9000}]`,
			status: codes.Unset,
		},
		"missing datetime": {
			body:   `[{"eliagridload": 1}]`,
			status: codes.Error,
		},
		"bad timestamp": {
			body:   `[{"datetime": "yesterday", "eliagridload": 1}]`,
			status: codes.Error,
		},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(td.body))
			}))
			defer srv.Close()

			before := len(rec.Ended())
			c := NewEliaClient(srv.URL, nil)
			start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
			_, _ = c.FetchGridSeries(context.Background(), "ods003", "eliagridload", start, start.Add(time.Hour))

			ended := rec.Ended()
			require.Len(t, ended, before+1)
			span := ended[len(ended)-1]
			assert.Equal(t, "elia.fetch", span.Name())
			assert.Equal(t, td.status, span.Status().Code)
		})
	}
}
