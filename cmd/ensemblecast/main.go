package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"ensemblecast/internal/agent"
	"ensemblecast/internal/ensemble"
	"ensemblecast/internal/geocode"
	"ensemblecast/internal/openmeteo"
	"ensemblecast/internal/plot"
	"ensemblecast/internal/store"
)

// cachePruneAge is how long cached forecasts are kept before startup pruning
// removes them.
const cachePruneAge = 24 * time.Hour

type cli struct {
	DB          string `help:"Path to the SQLite forecast cache." default:"data/ensemblecast.db"`
	NoCache     bool   `help:"Bypass the forecast cache."`
	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)."`

	Chat        chatCmd        `cmd:"" help:"Ask a forecast question; an LLM drives the analysis tools."`
	Forecast    forecastCmd    `cmd:"" help:"Fetch raw multi-model forecast data."`
	Stats       statsCmd       `cmd:"" help:"Compute ensemble statistics for one variable."`
	Agreement   agreementCmd   `cmd:"" help:"Score cross-model agreement for one variable."`
	Uncertainty uncertaintyCmd `cmd:"" help:"Summarize forecast uncertainty across variables."`
	Range       rangeCmd       `cmd:"" help:"Compute daily high/low temperature statistics."`
	Plot        plotCmd        `cmd:"" help:"Render an ensemble uncertainty chart to a PNG."`
	Models      modelsCmd      `cmd:"" help:"List available weather models."`
}

// locationFlags resolves a target coordinate from either a place name or an
// explicit lat/lon pair.
type locationFlags struct {
	Location  string  `help:"Place name to geocode, e.g. 'Portland, OR'." xor:"loc"`
	Latitude  float64 `help:"Latitude in decimal degrees." xor:"loc"`
	Longitude float64 `help:"Longitude in decimal degrees."`
}

func (l *locationFlags) resolve(ctx context.Context, app *appContext) (lat, lon float64, err error) {
	if l.Location != "" {
		result, err := app.geocoder.Geocode(ctx, l.Location)
		if err != nil {
			return 0, 0, err
		}
		log.Printf("resolved %q to %s (%.4f, %.4f)", l.Location, result.DisplayName, result.Latitude, result.Longitude)
		return result.Latitude, result.Longitude, nil
	}
	return l.Latitude, l.Longitude, nil
}

type fetchFlags struct {
	locationFlags
	Days   int      `help:"Number of forecast days (1-16)." default:"7"`
	Models []string `help:"Weather models to query." default:"gfs,ecmwf,gem,icon"`
	Daily  bool     `help:"Fetch daily summaries instead of hourly series."`
}

func (f *fetchFlags) fetch(ctx context.Context, app *appContext) (ensemble.Dataset, error) {
	lat, lon, err := f.resolve(ctx, app)
	if err != nil {
		return nil, err
	}

	kind := "hourly"
	if f.Daily {
		kind = "daily"
	}

	if app.store != nil {
		ds, fetched, err := app.store.LatestDataset(kind, lat, lon, f.Days, f.Models, time.Hour)
		if err != nil {
			log.Printf("cache lookup failed: %v", err)
		} else if ds != nil {
			log.Printf("using cached %s forecast from %s", kind, fetched.Format(time.RFC3339))
			return ds, nil
		}
	}

	var ds ensemble.Dataset
	if f.Daily {
		ds = app.weather.FetchDaily(ctx, lat, lon, f.Days, f.Models)
	} else {
		ds = app.weather.FetchHourly(ctx, lat, lon, f.Days, f.Models)
	}

	if app.store != nil {
		if err := app.store.SaveDataset(kind, lat, lon, f.Days, f.Models, ds); err != nil {
			log.Printf("cache save failed: %v", err)
		}
	}
	return ds, nil
}

type appContext struct {
	ctx      context.Context
	weather  *openmeteo.Client
	geocoder *geocode.Client
	store    *store.Store
}

type chatCmd struct {
	Question []string `arg:"" help:"Forecast question to answer."`
}

func (c *chatCmd) Run(app *appContext) error {
	ag, err := agent.New(&agent.Toolbox{
		Weather:  app.weather,
		Geocoder: app.geocoder,
		Store:    app.store,
	})
	if err != nil {
		return err
	}

	answer, err := ag.Run(app.ctx, strings.Join(c.Question, " "))
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

type forecastCmd struct {
	fetchFlags
}

func (c *forecastCmd) Run(app *appContext) error {
	ds, err := c.fetch(app.ctx, app)
	if err != nil {
		return err
	}
	return printJSON(ds)
}

type statsCmd struct {
	fetchFlags
	Variable string `help:"Variable to analyze." enum:"temperature,precipitation,wind_speed" default:"temperature"`
	Min      bool   `help:"For daily temperature, analyze the daily minimum."`
}

func (c *statsCmd) Run(app *appContext) error {
	ds, err := c.fetch(app.ctx, app)
	if err != nil {
		return err
	}
	result, err := ensemble.Statistics(ds, ensemble.Variable(c.Variable), !c.Min)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type agreementCmd struct {
	fetchFlags
	Variable  string  `help:"Variable to analyze." enum:"temperature,precipitation,wind_speed" default:"temperature"`
	Min       bool    `help:"For daily temperature, analyze the daily minimum."`
	Threshold float64 `help:"Spread at which agreement is considered moderate." default:"5.0"`
}

func (c *agreementCmd) Run(app *appContext) error {
	ds, err := c.fetch(app.ctx, app)
	if err != nil {
		return err
	}
	opts := ensemble.DefaultAgreementOptions()
	opts.Threshold = c.Threshold
	opts.UseMax = !c.Min
	result, err := ensemble.Agreement(ds, ensemble.Variable(c.Variable), opts)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type uncertaintyCmd struct {
	fetchFlags
}

func (c *uncertaintyCmd) Run(app *appContext) error {
	ds, err := c.fetch(app.ctx, app)
	if err != nil {
		return err
	}
	result, err := ensemble.SummarizeUncertainty(ds)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type rangeCmd struct {
	fetchFlags
}

func (c *rangeCmd) Run(app *appContext) error {
	c.Daily = true
	ds, err := c.fetch(app.ctx, app)
	if err != nil {
		return err
	}
	result, err := ensemble.TemperatureRange(ds)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type plotCmd struct {
	fetchFlags
	Title  string `help:"Chart title." default:"Ensemble Forecast Uncertainty"`
	Output string `help:"Output PNG path." short:"o" default:"forecast.png"`
}

func (c *plotCmd) Run(app *appContext) error {
	ds, err := c.fetch(app.ctx, app)
	if err != nil {
		return err
	}
	data, err := plot.Render(ds, c.Title)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.Output, err)
	}
	log.Printf("wrote %s (%d bytes)", c.Output, len(data))
	return nil
}

type modelsCmd struct{}

func (c *modelsCmd) Run(app *appContext) error {
	for _, m := range openmeteo.AvailableModels() {
		fmt.Println(m)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openStore(path string) (*store.Store, func(), error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if removed, err := st.Prune(cachePruneAge); err != nil {
		log.Printf("cache prune failed: %v", err)
	} else if removed > 0 {
		log.Printf("pruned %d stale cache entries", removed)
	}
	return st, func() { db.Close() }, nil
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("ensemblecast"),
		kong.Description("Multi-model weather forecast analysis with ensemble statistics."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &appContext{
		ctx:      ctx,
		weather:  openmeteo.NewClient(),
		geocoder: geocode.NewClient(),
	}

	if !flags.NoCache {
		st, closeDB, err := openStore(flags.DB)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer closeDB()
		app.store = st
	}

	if flags.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("serving metrics on %s", flags.MetricsAddr)
			if err := http.ListenAndServe(flags.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	kctx.FatalIfErrorf(kctx.Run(app))
}
