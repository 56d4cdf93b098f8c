package shared

import "google.golang.org/adk/tool"

// ToolFunc is the function signature for tool execution.
// Middleware wraps ToolFuncs before they are turned into ADK tools.
type ToolFunc func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error)
