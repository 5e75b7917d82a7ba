package handlers

import (
	"net/http"
	"time"

	"github.com/DrorShokoPeer/ttydx/internal/database"
)

// HealthCheck is the unauthenticated liveness probe. The process is alive
// whenever it can answer; the database field is informational.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
	})
}
