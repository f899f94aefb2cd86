package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string              `json:"timestamp"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	State         string              `json:"state"`
	Subscriptions SubscriptionMetrics `json:"subscriptions"`
	Publish       PublishMetrics      `json:"publish"`
	Runtime       RuntimeMetrics      `json:"runtime"`
}

// SubscriptionMetrics mirrors helper.SubscriptionStatus.
type SubscriptionMetrics struct {
	Requested []string `json:"requested"`
	Tracked   int      `json:"tracked"`
	Pending   int      `json:"pending"`
	Rejected  []string `json:"rejected"`
	Outcome   string   `json:"outcome,omitempty"`
}

// PublishMetrics reports the most recent acknowledgment.
type PublishMetrics struct {
	LastAcknowledged *uint64 `json:"last_acknowledged"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	subs := s.helper.SubscriptionStatus()
	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		State:         string(s.helper.State()),
		Subscriptions: SubscriptionMetrics{
			Requested: nonNil(subs.Requested),
			Tracked:   subs.Tracked,
			Pending:   subs.Pending,
			Rejected:  nonNil(subs.Rejected),
		},
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}
	if subs.Waited {
		resp.Subscriptions.Outcome = subs.Outcome.String()
	}
	if id, ok := s.helper.LastAcknowledged(); ok {
		resp.Publish.LastAcknowledged = &id
	}

	writeJSON(w, http.StatusOK, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
