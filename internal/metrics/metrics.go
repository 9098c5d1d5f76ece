package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EngageRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_engage_runs_total",
		Help: "Engagement runs by trigger",
	}, []string{"trigger"})
	EngageRunErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "herald_engage_run_errors_total",
		Help: "Engagement runs that ended with an error",
	})
	EngageRunsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_engage_runs_skipped_total",
		Help: "Engagement runs skipped before touching the browser",
	}, []string{"reason"})
	EngageRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "herald_engage_run_duration_seconds",
		Help:    "Engagement run duration seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	})
	Actions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_actions_total",
		Help: "Recorded engagement attempts",
	}, []string{"action", "method", "success"})
	ChannelFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_channel_fallbacks_total",
		Help: "API failures that fell back to the browser",
	}, []string{"action"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	LLMTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_llm_tokens_total",
		Help: "Language model tokens consumed",
	}, []string{"kind"})
	LLMCost = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "herald_llm_cost_usd_total",
		Help: "Estimated language model spend in USD",
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		EngageRuns, EngageRunErrors, EngageRunsSkipped, EngageRunDuration,
		Actions, ChannelFallbacks, APIRetries, LLMTokens, LLMCost,
		CommandRuns, CommandErrors,
	)
}

// ObserveRunDuration records a run duration
func ObserveRunDuration(start time.Time) {
	EngageRunDuration.Observe(time.Since(start).Seconds())
}

// IncAction counts one recorded attempt.
func IncAction(action, method string, success bool) {
	Actions.WithLabelValues(action, method, strconv.FormatBool(success)).Inc()
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

// AddLLMUsage records token counts and cost of one model call.
func AddLLMUsage(promptTokens, completionTokens int, cost float64) {
	LLMTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	LLMTokens.WithLabelValues("completion").Add(float64(completionTokens))
	if cost > 0 {
		LLMCost.Add(cost)
	}
}

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
