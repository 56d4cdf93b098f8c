package general

import (
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
)

var weatherSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"city": {
			Type:        "string",
			Description: "City to look up, e.g. \"London\"",
		},
	},
	Required: []string{"city"},
}

// NewGetWeatherTool returns the weather for a city. Pro and above.
func NewGetWeatherTool(deps shared.Deps) tool.Tool {
	return shared.NewToolBuilder(
		ToolGetWeather,
		"Returns the current weather in a specific location",
		weather(deps),
		deps,
	).
		WithInputSchema(weatherSchema).
		WithTierGuard(plan.Pro).
		WithTimeout(10*time.Second).
		WithRetry(2, 250*time.Millisecond).
		MustBuild()
}

func weather(deps shared.Deps) shared.ToolFunc {
	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		city, _ := args["city"].(string)
		city = strings.TrimSpace(city)
		if city == "" {
			return nil, errors.NewValidationError("city", "is required", args["city"])
		}

		return map[string]interface{}{
			"city":        city,
			"temperature": "22°C",
			"condition":   "Sunny",
		}, nil
	}
}
