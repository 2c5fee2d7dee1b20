package monitoring

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatsProvider returns a snapshot of runtime statistics
type StatsProvider func() map[string]interface{}

// StatsHandler serves the provider's snapshot as JSON
func StatsHandler(provider StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"time":  time.Now().Unix(),
			"stats": provider(),
		})
	}
}
