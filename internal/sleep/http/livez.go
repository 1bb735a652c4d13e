package http

import (
	"net/http"
	"time"

	"github.com/somnuslabs/somnus/pkg/httpx"
	"github.com/somnuslabs/somnus/pkg/sleepsdk"
)

// LivezHandler is the liveness probe: a 200 whenever the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, sleepsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
