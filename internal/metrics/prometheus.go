package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gating metrics
	ToolResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_tool_resolutions_total",
			Help: "Total number of tool set resolutions by resolved tier",
		},
		[]string{"tier"},
	)

	ToolsExposed = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiergate_tools_exposed",
			Help:    "Number of tools exposed per resolution",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 13},
		},
		[]string{"tier"},
	)

	InvalidPlanValues = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tiergate_invalid_plan_values_total",
			Help: "Plan values that mapped to no tier and were treated as the default tier",
		},
	)

	PlanChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_plan_changes_total",
			Help: "Plan transitions applied to session state",
		},
		[]string{"from", "to", "source"}, // source: tool|admin
	)

	// Agent metrics
	AgentTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_agent_turns_total",
			Help: "Total number of agent turns",
		},
		[]string{"agent", "status"}, // status: success|error|locked
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiergate_agent_turn_latency_seconds",
			Help:    "Agent turn latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"agent"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_agent_tokens_total",
			Help: "Total tokens reported by the model",
		},
		[]string{"agent", "type"}, // type: prompt|completion
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiergate_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"tool"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiergate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_kafka_messages_total",
			Help: "Kafka messages published",
		},
		[]string{"topic", "status"},
	)

	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tiergate_websocket_connections",
			Help: "Open /run_live connections",
		},
	)

	ProfileSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiergate_profile_syncs_total",
			Help: "plan.upgraded events handled by the profile sync consumer",
		},
		[]string{"result"}, // result: raised|ignored|error
	)

	ToolUsageWindow = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiergate_tool_usage_window_calls",
			Help: "Tool calls in the last usage report window, from ClickHouse",
		},
		[]string{"tool", "tier"},
	)

	SessionLockWaits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tiergate_session_lock_wait_seconds",
			Help:    "Time spent waiting for the per-session turn lock",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(ToolResolutions)
	prometheus.MustRegister(ToolsExposed)
	prometheus.MustRegister(InvalidPlanValues)
	prometheus.MustRegister(PlanChanges)

	prometheus.MustRegister(AgentTurns)
	prometheus.MustRegister(AgentLatency)
	prometheus.MustRegister(AgentTokens)

	prometheus.MustRegister(ToolExecutions)
	prometheus.MustRegister(ToolLatency)

	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)

	prometheus.MustRegister(KafkaMessages)
	prometheus.MustRegister(WebSocketConnections)
	prometheus.MustRegister(SessionLockWaits)
	prometheus.MustRegister(ProfileSyncs)
	prometheus.MustRegister(ToolUsageWindow)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordResolution records one gating decision
func RecordResolution(tier string, exposed int, invalidPlan bool) {
	ToolResolutions.WithLabelValues(tier).Inc()
	ToolsExposed.WithLabelValues(tier).Observe(float64(exposed))
	if invalidPlan {
		InvalidPlanValues.Inc()
	}
}

// RecordPlanChange records a plan transition
func RecordPlanChange(from, to, source string) {
	PlanChanges.WithLabelValues(from, to, source).Inc()
}

// RecordAgentTurn records a finished agent turn
func RecordAgentTurn(agent, status string, latency time.Duration) {
	AgentTurns.WithLabelValues(agent, status).Inc()
	AgentLatency.WithLabelValues(agent).Observe(latency.Seconds())
}

// RecordTokens records model token usage
func RecordTokens(agent string, prompt, completion int32) {
	if prompt > 0 {
		AgentTokens.WithLabelValues(agent, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		AgentTokens.WithLabelValues(agent, "completion").Add(float64(completion))
	}
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordKafkaMessage records a publish attempt
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(route string, code int, latency time.Duration) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(latency.Seconds())
}

// RecordLockWait records time spent waiting for a session lock
func RecordLockWait(wait time.Duration) {
	SessionLockWaits.Observe(wait.Seconds())
}

// RecordProfileSync records one handled plan.upgraded event
func RecordProfileSync(result string) {
	ProfileSyncs.WithLabelValues(result).Inc()
}

// SetToolUsageWindow replaces the per-tool call counts of the last report
func SetToolUsageWindow(tool string, tier uint8, calls uint64) {
	ToolUsageWindow.WithLabelValues(tool, strconv.Itoa(int(tier))).Set(float64(calls))
}

// ResetToolUsageWindow clears the previous report
func ResetToolUsageWindow() {
	ToolUsageWindow.Reset()
}
