package wire

import (
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// Marshal encodes an Envelope into its binary wire form.
func Marshal(e *Envelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSchemaVersion, protowire.BytesType)
	b = protowire.AppendString(b, e.SchemaVersion)
	b = protowire.AppendTag(b, fieldServerTsMs, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.ServerTsMs))

	switch {
	case e.SubscriptionRequest != nil:
		b = appendMessageField(b, fieldSubscriptionReq, marshalSubscriptionRequest(e.SubscriptionRequest))
	case e.SubscriptionAck != nil:
		b = appendMessageField(b, fieldSubscriptionAck, marshalSubscriptionAck(e.SubscriptionAck))
	case e.TrackDeltaBatch != nil:
		b = appendMessageField(b, fieldTrackDeltaBatch, marshalTrackDeltaBatch(e.TrackDeltaBatch))
	case e.AlertUpsert != nil:
		b = appendMessageField(b, fieldAlertUpsert, marshalAlert(e.AlertUpsert))
	case e.LinkUpsert != nil:
		b = appendMessageField(b, fieldLinkUpsert, marshalLink(e.LinkUpsert))
	case e.ProviderStatus != nil:
		b = appendMessageField(b, fieldProviderStatus, marshalProviderStatus(e.ProviderStatus))
	case e.SnapshotMeta != nil:
		b = appendMessageField(b, fieldSnapshotMeta, marshalSnapshot(e.SnapshotMeta))
	}

	return b
}

func appendMessageField(dst []byte, num protowire.Number, sub []byte) []byte {
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	dst = protowire.AppendBytes(dst, sub)
	return dst
}

func appendStringField(dst []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	dst = protowire.AppendString(dst, v)
	return dst
}

func appendVarintField(dst []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	dst = protowire.AppendVarint(dst, v)
	return dst
}

func appendDoubleField(dst []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.Fixed64Type)
	dst = protowire.AppendFixed64(dst, math.Float64bits(v))
	return dst
}

func appendBoolField(dst []byte, num protowire.Number, v bool) []byte {
	if !v {
		return dst
	}
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	dst = protowire.AppendVarint(dst, 1)
	return dst
}

// appendMetaField appends one MetaEntry{key,value} submessage per map
// entry, in sorted key order so Marshal is deterministic.
func appendMetaField(dst []byte, num protowire.Number, meta map[string]string) []byte {
	if len(meta) == 0 {
		return dst
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var entry []byte
		entry = appendStringField(entry, metaFieldKey, k)
		entry = appendStringField(entry, metaFieldValue, meta[k])
		dst = appendMessageField(dst, num, entry)
	}
	return dst
}

func marshalSubscriptionRequest(r *SubscriptionRequest) []byte {
	var b []byte
	b = appendDoubleField(b, subReqFieldMinLat, r.Viewport.MinLat)
	b = appendDoubleField(b, subReqFieldMinLon, r.Viewport.MinLon)
	b = appendDoubleField(b, subReqFieldMaxLat, r.Viewport.MaxLat)
	b = appendDoubleField(b, subReqFieldMaxLon, r.Viewport.MaxLon)
	for _, layer := range r.Layers {
		b = protowire.AppendTag(b, subReqFieldLayers, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(layer))
	}
	b = appendVarintField(b, subReqFieldMode, uint64(r.Mode))
	if r.TimeRange != nil {
		var tr []byte
		tr = appendVarintField(tr, timeRangeFieldStartTsMs, uint64(r.TimeRange.StartTsMs))
		tr = appendVarintField(tr, timeRangeFieldEndTsMs, uint64(r.TimeRange.EndTsMs))
		tr = appendDoubleField(tr, timeRangeFieldSpeed, r.TimeRange.Speed)
		b = appendMessageField(b, subReqFieldTimeRange, tr)
	}
	return b
}

func marshalSubscriptionAck(a *SubscriptionAck) []byte {
	var b []byte
	b = appendBoolField(b, subAckFieldSuccess, a.Success)
	b = appendStringField(b, subAckFieldError, a.Error)
	return b
}

func marshalTrackDeltaBatch(batch *TrackDeltaBatch) []byte {
	var b []byte
	for _, d := range batch.Deltas {
		b = appendMessageField(b, trackBatchFieldDeltas, marshalTrackDelta(d))
	}
	return b
}

func marshalTrackDelta(d model.TrackDelta) []byte {
	var b []byte
	b = appendStringField(b, trackFieldID, d.ID)
	b = appendVarintField(b, trackFieldKind, uint64(d.Kind))
	b = appendDoubleField(b, trackFieldLat, d.Lat)
	b = appendDoubleField(b, trackFieldLon, d.Lon)
	b = appendDoubleField(b, trackFieldAlt, d.Alt)
	b = appendDoubleField(b, trackFieldHeadingDeg, d.HeadingDeg)
	b = appendDoubleField(b, trackFieldSpeedMps, d.SpeedMps)
	b = appendVarintField(b, trackFieldTsMs, uint64(d.TsMs))
	b = appendStringField(b, trackFieldProviderID, d.ProviderID)
	b = appendMetaField(b, trackFieldMeta, d.Meta)
	return b
}

func marshalAlert(a *model.Alert) []byte {
	var b []byte
	b = appendStringField(b, alertFieldID, a.ID)
	b = appendVarintField(b, alertFieldSeverity, uint64(a.Severity))
	b = appendStringField(b, alertFieldTitle, a.Title)
	b = appendStringField(b, alertFieldDescription, a.Description)
	b = appendVarintField(b, alertFieldTsMs, uint64(a.TsMs))
	b = appendVarintField(b, alertFieldStatus, uint64(a.Status))
	for _, id := range a.EvidenceLinkIDs {
		b = protowire.AppendTag(b, alertFieldEvidenceLinkIDs, protowire.BytesType)
		b = protowire.AppendString(b, id)
	}
	b = appendMetaField(b, alertFieldMeta, a.Meta)
	return b
}

func marshalLink(l *model.Link) []byte {
	var b []byte
	b = appendStringField(b, linkFieldID, l.ID)
	b = appendStringField(b, linkFieldFromType, l.FromType)
	b = appendStringField(b, linkFieldFromID, l.FromID)
	b = appendStringField(b, linkFieldRel, l.Rel)
	b = appendStringField(b, linkFieldToType, l.ToType)
	b = appendStringField(b, linkFieldToID, l.ToID)
	b = appendVarintField(b, linkFieldTsMs, uint64(l.TsMs))
	b = appendMetaField(b, linkFieldMeta, l.Meta)
	return b
}

func marshalProviderStatus(s *model.ProviderStatus) []byte {
	var b []byte
	b = appendStringField(b, statusFieldProviderID, s.ProviderID)
	b = appendVarintField(b, statusFieldCircuitState, uint64(s.CircuitState))
	b = appendVarintField(b, statusFieldFreshness, uint64(s.Freshness))
	b = appendVarintField(b, statusFieldLastSuccessTsMs, uint64(s.LastSuccessTsMs))
	b = appendVarintField(b, statusFieldFailureCount, uint64(s.FailureCount))
	b = appendStringField(b, statusFieldErrorMessage, s.ErrorMessage)
	return b
}

func marshalSnapshot(s *model.Snapshot) []byte {
	var b []byte
	b = appendStringField(b, snapFieldSnapshotID, s.SnapshotID)
	b = appendVarintField(b, snapFieldStartTsMs, uint64(s.StartTsMs))
	b = appendVarintField(b, snapFieldEndTsMs, uint64(s.EndTsMs))
	b = appendVarintField(b, snapFieldTrackCount, uint64(s.TrackCount))
	b = appendStringField(b, snapFieldStoragePath, s.StoragePath)
	b = appendStringField(b, snapFieldStorageBackend, s.StorageBackend)
	b = appendVarintField(b, snapFieldCompressedSizeBytes, uint64(s.CompressedSizeBytes))
	b = appendStringField(b, snapFieldViewportJSON, s.ViewportJSON)
	return b
}
