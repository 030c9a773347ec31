package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the snapshot returned by source as JSON.
func Handler(source func() Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := source()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
