// Package export writes forecast inputs and outputs as downloadable csv files
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aouyang1/grid-forecaster/frame"
	"github.com/aouyang1/grid-forecaster/series"
)

var (
	ErrEmptyCSV       = errors.New("csv has no header")
	ErrUnexpectedCols = errors.New("unexpected csv columns")
)

const (
	TimeLayout  = "2006-01-02 15:04:05"
	stampLayout = "20060102_150405"

	KindInput        = "input_data"
	KindForecast     = "forecast_data"
	KindCoefficients = "coefficients"

	InputTimeColumn = "datetime"
)

// ForecastHeader is the column order of a forecast csv
var ForecastHeader = []string{
	"ds", "yhat", "yhat_lower", "yhat_upper",
	"trend", "seasonality", "holidays", "extra_regressors", "in_sample",
}

// CoefficientsHeader is the column order of a regressor coefficient csv
var CoefficientsHeader = []string{
	"regressor", "regressor_mode", "center", "coef_lower", "coef", "coef_upper",
}

// Filename returns a stamped csv name such as input_data_20250701_130405.csv
func Filename(kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind, now.Format(stampLayout))
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeAll(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InputCSV writes the fetched series with a datetime column and a column named valueName
func InputCSV(s series.Series, valueName string) ([]byte, error) {
	rows := make([][]string, 0, len(s))
	for _, p := range s {
		rows = append(rows, []string{p.T.Format(TimeLayout), fmtFloat(p.Value)})
	}
	return writeAll([]string{InputTimeColumn, valueName}, rows)
}

// ForecastCSV writes every forecast row with its band and components
func ForecastCSV(ff frame.ForecastFrame) ([]byte, error) {
	rows := make([][]string, 0, ff.Len())
	for _, r := range ff.Rows {
		rows = append(rows, []string{
			r.DS.Format(TimeLayout),
			fmtFloat(r.YHat),
			fmtFloat(r.YHatLower),
			fmtFloat(r.YHatUpper),
			fmtFloat(r.Trend),
			fmtFloat(r.Seasonality),
			fmtFloat(r.Holidays),
			fmtFloat(r.ExtraRegressors),
			strconv.FormatBool(r.InSample),
		})
	}
	return writeAll(ForecastHeader, rows)
}

// CoefficientsCSV writes the regressor coefficient table
func CoefficientsCSV(coefs []frame.RegressorCoefficient) ([]byte, error) {
	rows := make([][]string, 0, len(coefs))
	for _, c := range coefs {
		rows = append(rows, []string{
			c.Regressor,
			c.Mode,
			fmtFloat(c.Center),
			fmtFloat(c.CoefLower),
			fmtFloat(c.Coef),
			fmtFloat(c.CoefUpper),
		})
	}
	return writeAll(CoefficientsHeader, rows)
}

func readAll(r io.Reader, cols int) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read csv, %w", err)
	}
	if len(records) == 0 {
		return nil, nil, ErrEmptyCSV
	}
	if len(records[0]) != cols {
		return nil, nil, fmt.Errorf("expected %d columns, but got %d, %w", cols, len(records[0]), ErrUnexpectedCols)
	}
	return records[0], records[1:], nil
}

// ParseInputCSV reads a csv written by InputCSV returning the series and its value column name
func ParseInputCSV(r io.Reader) (series.Series, string, error) {
	header, records, err := readAll(r, 2)
	if err != nil {
		return nil, "", err
	}
	if header[0] != InputTimeColumn {
		return nil, "", fmt.Errorf("first column %q, %w", header[0], ErrUnexpectedCols)
	}
	s := make(series.Series, 0, len(records))
	for i, rec := range records {
		t, err := time.Parse(TimeLayout, rec[0])
		if err != nil {
			return nil, "", fmt.Errorf("unable to parse time on row %d, %w", i+1, err)
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, "", fmt.Errorf("unable to parse value on row %d, %w", i+1, err)
		}
		s = append(s, series.Point{T: t, Value: v})
	}
	return s, header[1], nil
}

// ParseForecastCSV reads a csv written by ForecastCSV
func ParseForecastCSV(r io.Reader) (frame.ForecastFrame, error) {
	header, records, err := readAll(r, len(ForecastHeader))
	if err != nil {
		return frame.ForecastFrame{}, err
	}
	for i, col := range ForecastHeader {
		if header[i] != col {
			return frame.ForecastFrame{}, fmt.Errorf("column %d is %q, %w", i, header[i], ErrUnexpectedCols)
		}
	}

	rows := make([]frame.ForecastRow, 0, len(records))
	for i, rec := range records {
		t, err := time.Parse(TimeLayout, rec[0])
		if err != nil {
			return frame.ForecastFrame{}, fmt.Errorf("unable to parse time on row %d, %w", i+1, err)
		}
		vals := make([]float64, 7)
		for j := range vals {
			vals[j], err = strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return frame.ForecastFrame{}, fmt.Errorf("unable to parse %s on row %d, %w", ForecastHeader[j+1], i+1, err)
			}
		}
		inSample, err := strconv.ParseBool(rec[8])
		if err != nil {
			return frame.ForecastFrame{}, fmt.Errorf("unable to parse in_sample on row %d, %w", i+1, err)
		}
		rows = append(rows, frame.ForecastRow{
			DS:              t,
			YHat:            vals[0],
			YHatLower:       vals[1],
			YHatUpper:       vals[2],
			Trend:           vals[3],
			Seasonality:     vals[4],
			Holidays:        vals[5],
			ExtraRegressors: vals[6],
			InSample:        inSample,
		})
	}
	return frame.ForecastFrame{Rows: rows}, nil
}
