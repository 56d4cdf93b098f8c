package general

import (
	"google.golang.org/adk/tool"

	"tiergate/internal/tools/shared"
)

// NewSendSupportLinkTool returns the support page link
func NewSendSupportLinkTool(deps shared.Deps) tool.Tool {
	return shared.NewToolBuilder(
		ToolSendSupportLink,
		"Returns the support page link.",
		supportLink,
		deps,
	).MustBuild()
}

func supportLink(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"support_link": SupportLink}, nil
}
