// Package health serves liveness and readiness. The app is ready once it
// has been marked ready and the chain RPC has answered a head query.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"xdc-transfer/internal/interfaces"
	"xdc-transfer/internal/logger"
)

type ChainStatus struct {
	Name      string    `json:"name"`
	LastBlock uint64    `json:"last_block"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

var (
	isReady       atomic.Bool
	chainStatuses = make(map[string]*ChainStatus)
	statusMutex   sync.RWMutex
)

func SetReady(ready bool) {
	isReady.Store(ready)
}

func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	statusMutex.RLock()
	defer statusMutex.RUnlock()

	if !isReady.Load() || !anyHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))

		return
	}

	response := make(map[string]interface{})
	response["status"] = "Ready"
	response["chains"] = chainStatuses

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// anyHealthy requires statusMutex held.
func anyHealthy() bool {
	for _, s := range chainStatuses {
		if s.Error == "" {
			return true
		}
	}
	return false
}

// RegisterHeadSource polls source every interval and records its head
// under name until ctx is done. A failed poll keeps the last known head
// and marks the chain unhealthy until the next success.
func RegisterHeadSource(ctx context.Context, name string, source interfaces.HeadSource, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			head, err := source.BlockNumber(ctx)
			if err != nil && ctx.Err() == nil {
				logger.GetLogger().Error().
					Err(err).
					Str("chain", name).
					Msg("Error getting latest block")
			}
			updateChainStatus(name, head, err)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func updateChainStatus(name string, head uint64, err error) {
	statusMutex.Lock()
	defer statusMutex.Unlock()

	status, ok := chainStatuses[name]
	if !ok {
		status = &ChainStatus{Name: name}
		chainStatuses[name] = status
	}
	status.CheckedAt = time.Now().UTC()
	if err != nil {
		status.Error = err.Error()
		return
	}
	status.LastBlock = head
	status.Error = ""
}

func reset() {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	chainStatuses = make(map[string]*ChainStatus)
	SetReady(false)
}
