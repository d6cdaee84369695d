package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bdi",
		Subsystem: "runtime",
		Name:      "cycles_total",
		Help:      "Reasoning cycles run, by outcome.",
	}, []string{"status"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bdi",
		Subsystem: "runtime",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one agent reasoning cycle.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	})

	triggersInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bdi",
		Subsystem: "runtime",
		Name:      "triggers_injected_total",
		Help:      "Triggers injected from outside the reasoning cycle, by trigger type.",
	}, []string{"type"})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bdi",
		Subsystem: "runtime",
		Name:      "messages_total",
		Help:      "Messages between agents, by delivery status.",
	}, []string{"status"})

	agentsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bdi",
		Subsystem: "runtime",
		Name:      "agents",
		Help:      "Agents currently held by the runner.",
	})
)

var (
	planRunsDesc = prometheus.NewDesc(
		"bdi_plan_runs_total",
		"Plan instantiations, per agent and plan.",
		[]string{"agent_id", "plan"}, nil,
	)
	planFailsDesc = prometheus.NewDesc(
		"bdi_plan_fails_total",
		"Failed plan instantiations, per agent and plan.",
		[]string{"agent_id", "plan"}, nil,
	)
	beliefsDesc = prometheus.NewDesc(
		"bdi_beliefs",
		"Beliefs held by each agent, nested views included.",
		[]string{"agent_id"}, nil,
	)
)

// Collector exposes the plan counters and belief counts of the runner's
// agents.
type Collector struct {
	runner *Runner
}

func (c Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- planRunsDesc
	ch <- planFailsDesc
	ch <- beliefsDesc
}

func (c Collector) Collect(ch chan<- prometheus.Metric) {
	for _, a := range c.runner.Agents() {
		// plans sharing a trigger are summed
		runs := make(map[string]int64)
		fails := make(map[string]int64)
		for _, s := range a.Plans() {
			runs[s.Plan] += s.Runs
			fails[s.Plan] += s.Fails
		}
		for plan, n := range runs {
			ch <- prometheus.MustNewConstMetric(planRunsDesc, prometheus.CounterValue, float64(n), a.ID(), plan)
			ch <- prometheus.MustNewConstMetric(planFailsDesc, prometheus.CounterValue, float64(fails[plan]), a.ID(), plan)
		}
		ch <- prometheus.MustNewConstMetric(beliefsDesc, prometheus.GaugeValue, float64(a.Beliefs().Size()), a.ID())
	}
}
