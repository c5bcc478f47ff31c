package relay

import "github.com/harpy-platform/harpy-core/internal/model"

// matchesSubscription applies the filter pipeline to a single delta: map its
// kind to the admitting layer set, reject if none of them are subscribed,
// then apply the viewport test. UNSPECIFIED never admits.
func matchesSubscription(sub *model.ClientSubscription, d model.TrackDelta) bool {
	layers := model.LayersForKind(d.Kind)
	if len(layers) == 0 {
		return false
	}

	admitted := false
	for _, l := range layers {
		if _, ok := sub.Layers[l]; ok {
			admitted = true
			break
		}
	}
	if !admitted {
		return false
	}

	return sub.Viewport.Contains(d.Lat, d.Lon)
}

// filterBatch returns the subset of deltas that pass sub's filter pipeline,
// or nil if none do.
func filterBatch(sub *model.ClientSubscription, deltas []model.TrackDelta) []model.TrackDelta {
	var out []model.TrackDelta
	for _, d := range deltas {
		if matchesSubscription(sub, d) {
			out = append(out, d)
		}
	}
	return out
}

// normalizeLayers expands an empty layer list to every layer, per the
// subscription-update semantics (empty layers means "all").
func normalizeLayers(layers []model.LayerType) map[model.LayerType]struct{} {
	if len(layers) == 0 {
		return model.AllLayers()
	}
	out := make(map[model.LayerType]struct{}, len(layers))
	for _, l := range layers {
		out[l] = struct{}{}
	}
	return out
}
