package api

import (
	"net/http"

	"github.com/harpy-platform/harpy-core/internal/fusion"
)

// HandleFusionRules returns a handler for GET /api/v1/fusion/rules: each
// registered rule's name, enabled status and trigger count since start.
func HandleFusionRules(engine *fusion.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"rules": engine.RuleStatuses(),
		})
	}
}
