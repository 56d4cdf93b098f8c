package general

import (
	"time"

	"google.golang.org/adk/tool"

	"tiergate/internal/tools/shared"
)

// NewGetCurrentTimeTool returns the local time
func NewGetCurrentTimeTool(deps shared.Deps) tool.Tool {
	return shared.NewToolBuilder(
		ToolGetCurrentTime,
		"Returns the current time as a string in the format 'YYYY-MM-DD HH:MM:SS'.",
		currentTime(deps),
		deps,
	).
		WithTimeout(5 * time.Second).
		MustBuild()
}

func currentTime(deps shared.Deps) shared.ToolFunc {
	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{
			"current_time": deps.Clock().Format(TimeLayout),
		}, nil
	}
}
