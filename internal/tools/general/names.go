// Package general holds the tools exposed by the basic agent.
package general

// Tool names, in registration order
const (
	ToolGetCurrentTime   = "get_current_time"
	ToolSendSupportLink  = "send_support_link"
	ToolRetrieveUserPlan = "retrieve_user_plan"
	ToolUpgradeUserPlan  = "upgrade_user_plan"
	ToolGetWeather       = "get_weather"
)

// SupportLink is the page returned by send_support_link
const SupportLink = "https://help.openai.com/en"

// TimeLayout renders as YYYY-MM-DD HH:MM:SS
const TimeLayout = "2006-01-02 15:04:05"
