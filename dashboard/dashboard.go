package dashboard

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// DashboardStatus is a short summary of the running service.
type DashboardStatus struct {
	Uptime       string `json:"uptime"`
	Goroutines   int    `json:"goroutines"`
	Status       string `json:"status"`
	CatalogNodes int    `json:"catalog_nodes"`
	QueuePending int    `json:"queue_pending"`
	Breaker      string `json:"breaker"`
}

// Sources feed the dashboard. Nil fields are reported as zero values.
type Sources struct {
	Catalog interface{ Len() int }
	Queue   interface{ Pending() int }
	Breaker interface{ BreakerState() string }
}

var startedAt = time.Now()

// Handler returns the current service status.
func Handler(src Sources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := DashboardStatus{
			Uptime:     time.Since(startedAt).Round(time.Second).String(),
			Goroutines: runtime.NumGoroutine(),
			Status:     "ok",
		}
		if src.Catalog != nil {
			status.CatalogNodes = src.Catalog.Len()
		}
		if src.Queue != nil {
			status.QueuePending = src.Queue.Pending()
		}
		if src.Breaker != nil {
			status.Breaker = src.Breaker.BreakerState()
			if status.Breaker == "open" {
				status.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}
