package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/relay"
	"github.com/harpy-platform/harpy-core/internal/store"
)

var layerNames = map[string]model.LayerType{
	"aircraft":  model.LayerAircraft,
	"satellite": model.LayerSatellite,
	"ground":    model.LayerGround,
	"vessel":    model.LayerVessel,
	"camera":    model.LayerCamera,
	"detection": model.LayerDetection,
	"alert":     model.LayerAlert,
}

func parseLayersCSV(csv string) ([]model.LayerType, bool) {
	if csv == "" {
		return nil, true
	}
	var out []model.LayerType
	for _, name := range strings.Split(csv, ",") {
		l, ok := layerNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, false
		}
		out = append(out, l)
	}
	return out, true
}

func parseSeekRequest(r *http.Request) (relay.SeekRequest, error) {
	q := r.URL.Query()

	startTsMs, err := strconv.ParseInt(q.Get("start_ts_ms"), 10, 64)
	if err != nil {
		return relay.SeekRequest{}, err
	}
	endTsMs, err := strconv.ParseInt(q.Get("end_ts_ms"), 10, 64)
	if err != nil {
		return relay.SeekRequest{}, err
	}

	req := relay.SeekRequest{StartTsMs: startTsMs, EndTsMs: endTsMs}

	if q.Has("min_lat") || q.Has("max_lat") || q.Has("min_lon") || q.Has("max_lon") {
		vp, err := parseViewportQuery(q)
		if err != nil {
			return relay.SeekRequest{}, err
		}
		req.Viewport = vp
	}

	if layers, ok := parseLayersCSV(q.Get("layers")); ok {
		req.Layers = layers
	} else {
		return relay.SeekRequest{}, errInvalidLayer
	}

	return req, nil
}

func parseViewportQuery(q map[string][]string) (*model.Viewport, error) {
	get := func(key string) (float64, error) {
		vals := q[key]
		if len(vals) == 0 {
			return 0, errMissingViewportField
		}
		return strconv.ParseFloat(vals[0], 64)
	}

	minLat, err := get("min_lat")
	if err != nil {
		return nil, err
	}
	maxLat, err := get("max_lat")
	if err != nil {
		return nil, err
	}
	minLon, err := get("min_lon")
	if err != nil {
		return nil, err
	}
	maxLon, err := get("max_lon")
	if err != nil {
		return nil, err
	}

	return &model.Viewport{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}, nil
}

// HandleSeek returns a handler for GET /seek.
func HandleSeek(stateRepo *store.StateRepo, deltaRepo *store.DeltaRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseSeekRequest(r)
		if err != nil {
			WriteJSON(w, http.StatusBadRequest, relay.SeekError{
				Error: "invalid query parameters: " + err.Error(),
				Code:  relay.ErrCodeInvalidRange,
			})
			return
		}

		resp, serr := relay.Seek(stateRepo, deltaRepo, req)
		if serr != nil {
			WriteJSON(w, seekErrorStatus(serr.Code), serr)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func seekErrorStatus(code string) int {
	switch code {
	case relay.ErrCodeInvalidRange, relay.ErrCodeRangeTooLarge:
		return http.StatusBadRequest
	case relay.ErrCodeDBUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
