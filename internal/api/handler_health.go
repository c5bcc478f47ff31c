package api

import "net/http"

const serviceName = "harpy"

// HandleHealth returns a handler for GET /health. No authentication is
// required.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	}
}
