// Package metrics exposes process-wide counters for fetch, cache, and LLM
// activity. The counters live on a private registry so the interactive
// session can render them on demand without running an HTTP exporter.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var registry = prometheus.NewRegistry()

var (
	// HNFetches counts Hacker News item API requests by result (ok, error).
	HNFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vector_hn_fetches_total",
		Help: "Hacker News item API requests by result.",
	}, []string{"result"})

	// CacheLookups counts report cache lookups by result (hit, miss).
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vector_cache_lookups_total",
		Help: "Report cache lookups by result.",
	}, []string{"result"})

	// LLMCalls counts LLM chat calls by provider, operation, and result.
	LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vector_llm_calls_total",
		Help: "LLM chat calls by provider, operation, and result.",
	}, []string{"provider", "operation", "result"})
)

func init() {
	registry.MustRegister(HNFetches, CacheLookups, LLMCalls)
}

// Dump writes the current counter values in a human-readable form.
func Dump(w io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})

	for _, family := range families {
		fmt.Fprintf(w, "%s\n", family.GetName())
		for _, m := range family.GetMetric() {
			fmt.Fprintf(w, "  %s = %.0f\n", formatLabels(m), m.GetCounter().GetValue())
		}
	}
	return nil
}

func formatLabels(m *dto.Metric) string {
	labels := m.GetLabel()
	if len(labels) == 0 {
		return "(no labels)"
	}

	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
	}
	return strings.Join(parts, " ")
}
