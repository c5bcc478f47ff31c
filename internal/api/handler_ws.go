package api

import (
	"net/http"

	"github.com/harpy-platform/harpy-core/internal/relay"
)

// HandleWebSocket returns a handler for GET /ws that upgrades the
// connection and hands it to the relay hub.
func HandleWebSocket(hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}
}
