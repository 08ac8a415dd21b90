package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/openai/openai-go/v3"

	"ensemblecast/internal/ensemble"
	"ensemblecast/internal/geocode"
	"ensemblecast/internal/metrics"
	"ensemblecast/internal/openmeteo"
	"ensemblecast/internal/plot"
	"ensemblecast/internal/store"
)

// cacheMaxAge is how long a cached forecast is served before a refetch.
const cacheMaxAge = time.Hour

// Toolbox holds the collaborators the model can reach through tool calls.
// Store is optional; with a nil store every fetch goes to the API.
type Toolbox struct {
	Weather  *openmeteo.Client
	Geocoder *geocode.Client
	Store    *store.Store
}

// Definitions returns the function tool schemas advertised to the model.
func (tb *Toolbox) Definitions() []openai.ChatCompletionToolUnionParam {
	latLon := func(extra map[string]any) openai.FunctionParameters {
		props := map[string]any{
			"latitude":  map[string]any{"type": "number", "description": "Latitude in decimal degrees"},
			"longitude": map[string]any{"type": "number", "description": "Longitude in decimal degrees"},
			"days":      map[string]any{"type": "integer", "description": "Number of forecast days (1-16, default 7)"},
			"models": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Weather models to query (default gfs)",
			},
		}
		for k, v := range extra {
			props[k] = v
		}
		return openai.FunctionParameters{
			"type":       "object",
			"properties": props,
			"required":   []string{"latitude", "longitude"},
		}
	}

	datasetParams := func(extra map[string]any, required ...string) openai.FunctionParameters {
		props := map[string]any{
			"forecast_data": map[string]any{
				"type":        "string",
				"description": "Forecast dataset JSON as returned by a fetch tool",
			},
		}
		for k, v := range extra {
			props[k] = v
		}
		return openai.FunctionParameters{
			"type":       "object",
			"properties": props,
			"required":   append([]string{"forecast_data"}, required...),
		}
	}

	variableProp := map[string]any{
		"type":        "string",
		"enum":        []string{"temperature", "precipitation", "wind_speed"},
		"description": "Forecast variable to analyze",
	}
	useMaxProp := map[string]any{
		"type":        "boolean",
		"description": "For daily temperature, use the daily max (true) or min (false)",
	}

	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "geocode_location",
			Description: openai.String("Resolve a place name to latitude and longitude"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{"type": "string", "description": "Place name, e.g. 'Portland, OR'"},
				},
				"required": []string{"location"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_available_models",
			Description: openai.String("List the weather models available for ensemble forecasts"),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "fetch_weather_forecast",
			Description: openai.String("Fetch hourly forecasts from multiple weather models for a coordinate"),
			Parameters:  latLon(nil),
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "fetch_daily_weather_forecast",
			Description: openai.String("Fetch daily forecasts (highs, lows, precipitation, max wind) from multiple weather models"),
			Parameters:  latLon(nil),
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "calculate_ensemble_statistics",
			Description: openai.String("Compute cross-model mean, median, spread, and percentiles for one variable"),
			Parameters: datasetParams(map[string]any{
				"variable": variableProp,
				"use_max":  useMaxProp,
			}, "variable"),
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "calculate_daily_temperature_range_statistics",
			Description: openai.String("Compute ensemble statistics for daily high and low temperatures together"),
			Parameters:  datasetParams(nil),
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "calculate_model_agreement",
			Description: openai.String("Score how closely the models agree on a variable, per timestep and overall"),
			Parameters: datasetParams(map[string]any{
				"variable": variableProp,
				"use_max":  useMaxProp,
				"threshold": map[string]any{
					"type":        "number",
					"description": "Spread at which agreement is considered moderate (default 5.0)",
				},
			}, "variable"),
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "summarize_forecast_uncertainty",
			Description: openai.String("Summarize forecast uncertainty across all variables with low/moderate/high levels"),
			Parameters:  datasetParams(nil),
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "create_ensemble_uncertainty_plot",
			Description: openai.String("Render a PNG chart of model traces, ensemble mean, and interquartile band"),
			Parameters: datasetParams(map[string]any{
				"title":       map[string]any{"type": "string", "description": "Chart title"},
				"output_path": map[string]any{"type": "string", "description": "File path for the PNG (default forecast.png)"},
			}),
		}),
	}
}

type fetchArgs struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Days      int      `json:"days"`
	Models    []string `json:"models"`
}

type analysisArgs struct {
	ForecastData json.RawMessage `json:"forecast_data"`
	Variable     string          `json:"variable"`
	UseMax       *bool           `json:"use_max"`
	Threshold    float64         `json:"threshold"`
	Title        string          `json:"title"`
	OutputPath   string          `json:"output_path"`
}

// Dispatch executes one tool call and returns its result serialized as JSON.
// Tool failures are not Go errors to the caller: they come back flattened as
// {"error": message} so the model can read them and recover.
func (tb *Toolbox) Dispatch(ctx context.Context, name, arguments string) string {
	result, err := tb.dispatch(ctx, name, arguments)
	status := "ok"
	if err != nil {
		status = "error"
		result = map[string]string{"error": err.Error()}
	}
	metrics.AgentToolCallsTotal.WithLabelValues(name, status).Inc()

	data, merr := json.Marshal(result)
	if merr != nil {
		data, _ = json.Marshal(map[string]string{"error": merr.Error()})
	}
	return string(data)
}

func (tb *Toolbox) dispatch(ctx context.Context, name, arguments string) (any, error) {
	switch name {
	case "geocode_location":
		var args struct {
			Location string `json:"location"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return tb.Geocoder.Geocode(ctx, args.Location)

	case "get_available_models":
		return map[string]any{"models": openmeteo.AvailableModels()}, nil

	case "fetch_weather_forecast":
		return tb.fetchForecast(ctx, "hourly", arguments)

	case "fetch_daily_weather_forecast":
		return tb.fetchForecast(ctx, "daily", arguments)

	case "calculate_ensemble_statistics":
		args, ds, err := decodeAnalysis(arguments)
		if err != nil {
			return nil, err
		}
		return ensemble.Statistics(ds, ensemble.Variable(args.Variable), useMax(args))

	case "calculate_daily_temperature_range_statistics":
		_, ds, err := decodeAnalysis(arguments)
		if err != nil {
			return nil, err
		}
		return ensemble.TemperatureRange(ds)

	case "calculate_model_agreement":
		args, ds, err := decodeAnalysis(arguments)
		if err != nil {
			return nil, err
		}
		opts := ensemble.DefaultAgreementOptions()
		opts.Threshold = args.Threshold
		opts.UseMax = useMax(args)
		return ensemble.Agreement(ds, ensemble.Variable(args.Variable), opts)

	case "summarize_forecast_uncertainty":
		_, ds, err := decodeAnalysis(arguments)
		if err != nil {
			return nil, err
		}
		return ensemble.SummarizeUncertainty(ds)

	case "create_ensemble_uncertainty_plot":
		args, ds, err := decodeAnalysis(arguments)
		if err != nil {
			return nil, err
		}
		title := args.Title
		if title == "" {
			title = "Ensemble Forecast Uncertainty"
		}
		data, err := plot.Render(ds, title)
		if err != nil {
			return nil, err
		}
		path := args.OutputPath
		if path == "" {
			path = "forecast.png"
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write plot: %w", err)
		}
		return map[string]any{"saved": path, "bytes": len(data)}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (tb *Toolbox) fetchForecast(ctx context.Context, kind, arguments string) (any, error) {
	var args fetchArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Days <= 0 {
		args.Days = 7
	}
	if len(args.Models) == 0 {
		args.Models = []string{"gfs"}
	}

	if tb.Store != nil {
		ds, fetched, err := tb.Store.LatestDataset(kind, args.Latitude, args.Longitude, args.Days, args.Models, cacheMaxAge)
		if err != nil {
			log.Printf("cache lookup failed: %v", err)
		} else if ds != nil {
			log.Printf("serving %s forecast from cache (fetched %s)", kind, fetched.Format(time.RFC3339))
			return ds, nil
		}
	}

	var ds ensemble.Dataset
	if kind == "daily" {
		ds = tb.Weather.FetchDaily(ctx, args.Latitude, args.Longitude, args.Days, args.Models)
	} else {
		ds = tb.Weather.FetchHourly(ctx, args.Latitude, args.Longitude, args.Days, args.Models)
	}

	if tb.Store != nil {
		if err := tb.Store.SaveDataset(kind, args.Latitude, args.Longitude, args.Days, args.Models, ds); err != nil {
			log.Printf("cache save failed: %v", err)
		}
	}
	return ds, nil
}

func decodeAnalysis(arguments string) (*analysisArgs, ensemble.Dataset, error) {
	var args analysisArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, nil, fmt.Errorf("invalid arguments: %w", err)
	}
	ds, err := ensemble.DecodeDataset(args.ForecastData)
	if err != nil {
		return nil, nil, err
	}
	return &args, ds, nil
}

func useMax(args *analysisArgs) bool {
	if args.UseMax == nil {
		return true
	}
	return *args.UseMax
}
