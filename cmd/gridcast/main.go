// Command gridcast forecasts Belgian grid load, solar and wind either as an http service or as
// a one shot run writing csv and html files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"github.com/aouyang1/grid-forecaster/config"
	"github.com/aouyang1/grid-forecaster/datasource"
	"github.com/aouyang1/grid-forecaster/export"
	"github.com/aouyang1/grid-forecaster/frame"
	"github.com/aouyang1/grid-forecaster/logging"
	"github.com/aouyang1/grid-forecaster/pipeline"
	"github.com/aouyang1/grid-forecaster/server"
	"github.com/aouyang1/grid-forecaster/telemetry"
)

var errUsage = errors.New("usage: gridcast <serve|forecast> [flags]")

const chartFile = "forecast.html"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "serve":
		return serve(args[1:])
	case "forecast":
		return forecastOnce(args[1:], stdout)
	}
	return fmt.Errorf("unknown command %q, %w", args[0], errUsage)
}

type env struct {
	cfg      *config.Config
	logger   *logrus.Logger
	orch     *pipeline.Orchestrator
	shutdown telemetry.ShutdownFunc
}

func setup(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}, os.Stderr)
	if err != nil {
		return nil, err
	}

	src := datasource.NewClient(
		datasource.NewEliaClient(cfg.Elia.BaseURL, logger),
		datasource.NewRebaseClient(cfg.Rebase.APIKey, cfg.Rebase.BaseURL, logger),
	)
	return &env{
		cfg:      cfg,
		logger:   logger,
		orch:     pipeline.NewOrchestrator(src, cfg.Forecast.ForecasterOptions(), logger),
		shutdown: shutdown,
	}, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.shutdown(ctx); err != nil {
		e.logger.WithError(err).Warn("unable to flush traces")
	}
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a gridcast yaml config")
	port := fs.Int("port", 0, "listen port, overrides the config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	if *port > 0 {
		e.cfg.Server.Port = *port
	}
	return server.New(e.cfg, e.orch, e.logger).ListenAndServe(ctx)
}

func forecastOnce(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a gridcast yaml config")
	metricName := fs.String("metric", pipeline.Load.String(), "load, solar or wind")
	modeName := fs.String("mode", pipeline.Univariate.String(), "univariate or multivariate")
	regNames := fs.String("regressors", "", "comma separated weather regressors: sun_radiation, wind_speed, temperature")
	days := fs.Int("days", 0, "days of history to fit, defaults to the config")
	horizon := fs.Int("horizon", 0, "days to forecast, defaults to the config")
	outDir := fs.String("out", ".", "directory for the csv and html outputs")
	profileMode := fs.String("profile", "", "cpu or mem profile written to the output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*outDir), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(*outDir), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q, expected cpu or mem", *profileMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	req, err := buildRequest(e.cfg, *metricName, *modeName, *regNames, *days, *horizon)
	if err != nil {
		return err
	}
	res, err := e.orch.Run(ctx, req)
	if err != nil {
		return err
	}

	paths, err := writeOutputs(*outDir, res, time.Now())
	if err != nil {
		return err
	}
	for _, p := range paths {
		e.logger.WithField("path", p).Info("wrote output")
	}
	return printForecast(stdout, res)
}

func buildRequest(cfg *config.Config, metricName, modeName, regNames string, days, horizon int) (pipeline.Request, error) {
	metric, err := pipeline.ParseMetric(metricName)
	if err != nil {
		return pipeline.Request{}, err
	}
	mode, err := pipeline.ParseMode(modeName)
	if err != nil {
		return pipeline.Request{}, err
	}
	regs, err := frame.ParseRegressors(regNames)
	if err != nil {
		return pipeline.Request{}, err
	}
	if days == 0 {
		days = cfg.Forecast.HistoricalDays
	}
	if horizon == 0 {
		horizon = cfg.Forecast.HorizonDays
	}
	req := pipeline.Request{
		Metric:         metric,
		Mode:           mode,
		Regressors:     regs,
		HistoricalDays: days,
		HorizonDays:    horizon,
		Latitude:       cfg.Location.Latitude,
		Longitude:      cfg.Location.Longitude,
	}
	return req, req.Validate()
}

// writeOutputs writes the input and forecast csv files, the coefficient csv of multivariate runs
// and the chart page into dir returning the written paths
func writeOutputs(dir string, res *pipeline.Result, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create output directory, %w", err)
	}

	type output struct {
		kind   string
		render func() ([]byte, error)
	}
	outputs := []output{
		{export.KindInput, func() ([]byte, error) { return export.InputCSV(res.Input, res.ValueName) }},
		{export.KindForecast, func() ([]byte, error) { return export.ForecastCSV(res.Forecast) }},
	}
	if res.Request.Mode == pipeline.Multivariate {
		outputs = append(outputs, output{
			export.KindCoefficients,
			func() ([]byte, error) { return export.CoefficientsCSV(res.Coefficients) },
		})
	}

	paths := make([]string, 0, len(outputs)+1)
	for _, out := range outputs {
		body, err := out.render()
		if err != nil {
			return paths, fmt.Errorf("unable to write %s csv, %w", out.kind, err)
		}
		p := filepath.Join(dir, export.Filename(out.kind, now))
		if err := os.WriteFile(p, body, 0o644); err != nil {
			return paths, fmt.Errorf("unable to write %s, %w", p, err)
		}
		paths = append(paths, p)
	}

	p := filepath.Join(dir, chartFile)
	f, err := os.Create(p)
	if err != nil {
		return paths, fmt.Errorf("unable to create %s, %w", p, err)
	}
	if err := res.Charts.Render(f); err != nil {
		f.Close()
		return paths, fmt.Errorf("unable to render charts, %w", err)
	}
	if err := f.Close(); err != nil {
		return paths, fmt.Errorf("unable to close %s, %w", p, err)
	}
	return append(paths, p), nil
}

// printForecast writes the future rows and any regressor coefficients as aligned tables
func printForecast(w io.Writer, res *pipeline.Result) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tbl, "ds\tyhat\tyhat_lower\tyhat_upper\t\n")
	for _, row := range res.Forecast.Future() {
		fmt.Fprintf(tbl, "%s\t%.2f\t%.2f\t%.2f\t\n",
			row.DS.Format(export.TimeLayout), row.YHat, row.YHatLower, row.YHatUpper)
	}
	if err := tbl.Flush(); err != nil {
		return err
	}
	if len(res.Coefficients) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tbl = tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tbl, "regressor\tcenter\tcoef_lower\tcoef\tcoef_upper\t\n")
	for _, c := range res.Coefficients {
		fmt.Fprintf(tbl, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t\n", c.Regressor, c.Center, c.CoefLower, c.Coef, c.CoefUpper)
	}
	return tbl.Flush()
}
