// Package wire implements the binary Envelope format exchanged between a
// relay client and the server over a WebSocket binary frame: a hand-written
// protobuf-wire-compatible encoder/decoder, since no protoc toolchain is
// available to generate one from a .proto source.
package wire

import "github.com/harpy-platform/harpy-core/internal/model"

// SchemaVersion is the wire-level version stamped into every Envelope.
// A breaking change to this package's field layout must bump it.
const SchemaVersion = "1.0.0"

// Field numbers for the top-level Envelope message. Exactly one payload
// field is ever set.
const (
	fieldSchemaVersion   = 1
	fieldServerTsMs      = 2
	fieldSubscriptionReq = 3
	fieldSubscriptionAck = 4
	fieldTrackDeltaBatch = 5
	fieldAlertUpsert     = 6
	fieldLinkUpsert      = 7
	fieldProviderStatus  = 8
	fieldSnapshotMeta    = 9
)

// SubscriptionRequest is the only client-originated payload the relay acts
// on: it replaces the connection's viewport/layers/mode, and TimeRange only
// when Mode is PLAYBACK.
type SubscriptionRequest struct {
	Viewport  model.Viewport
	Layers    []model.LayerType
	Mode      model.SubscriptionMode
	TimeRange *model.TimeRange
}

// Field numbers within SubscriptionRequest.
const (
	subReqFieldMinLat    = 1
	subReqFieldMinLon    = 2
	subReqFieldMaxLat    = 3
	subReqFieldMaxLon    = 4
	subReqFieldLayers    = 5
	subReqFieldMode      = 6
	subReqFieldTimeRange = 7
)

// Field numbers within the embedded TimeRange message.
const (
	timeRangeFieldStartTsMs = 1
	timeRangeFieldEndTsMs   = 2
	timeRangeFieldSpeed     = 3
)

// SubscriptionAck answers a SubscriptionRequest, or any frame the relay
// could not decode. A failed ack never closes the connection.
type SubscriptionAck struct {
	Success bool
	Error   string
}

const (
	subAckFieldSuccess = 1
	subAckFieldError   = 2
)

// TrackDeltaBatch carries one or more raw observations in a single frame.
type TrackDeltaBatch struct {
	Deltas []model.TrackDelta
}

const trackBatchFieldDeltas = 1

// Field numbers within an embedded TrackDelta message.
const (
	trackFieldID         = 1
	trackFieldKind       = 2
	trackFieldLat        = 3
	trackFieldLon        = 4
	trackFieldAlt        = 5
	trackFieldHeadingDeg = 6
	trackFieldSpeedMps   = 7
	trackFieldTsMs       = 8
	trackFieldProviderID = 9
	trackFieldMeta       = 10
)

// Field numbers within an embedded Alert message.
const (
	alertFieldID              = 1
	alertFieldSeverity        = 2
	alertFieldTitle           = 3
	alertFieldDescription     = 4
	alertFieldTsMs            = 5
	alertFieldStatus          = 6
	alertFieldEvidenceLinkIDs = 7
	alertFieldMeta            = 8
)

// Field numbers within an embedded Link message.
const (
	linkFieldID       = 1
	linkFieldFromType = 2
	linkFieldFromID   = 3
	linkFieldRel      = 4
	linkFieldToType   = 5
	linkFieldToID     = 6
	linkFieldTsMs     = 7
	linkFieldMeta     = 8
)

// Field numbers within an embedded ProviderStatus message.
const (
	statusFieldProviderID      = 1
	statusFieldCircuitState    = 2
	statusFieldFreshness       = 3
	statusFieldLastSuccessTsMs = 4
	statusFieldFailureCount    = 5
	statusFieldErrorMessage    = 6
)

// Field numbers within an embedded Snapshot (SnapshotMeta) message.
const (
	snapFieldSnapshotID          = 1
	snapFieldStartTsMs           = 2
	snapFieldEndTsMs             = 3
	snapFieldTrackCount          = 4
	snapFieldStoragePath         = 5
	snapFieldStorageBackend      = 6
	snapFieldCompressedSizeBytes = 7
	snapFieldViewportJSON        = 8
)

// Field numbers within an embedded MetaEntry message (map[string]string
// entries, repeated since protobuf has no native string-string map on the
// wire beyond this exact shape).
const (
	metaFieldKey   = 1
	metaFieldValue = 2
)

// Envelope is the single frame type exchanged in both directions. Exactly
// one of the payload fields is non-nil on a well-formed value.
type Envelope struct {
	SchemaVersion string
	ServerTsMs    int64

	SubscriptionRequest *SubscriptionRequest
	SubscriptionAck     *SubscriptionAck
	TrackDeltaBatch     *TrackDeltaBatch
	AlertUpsert         *model.Alert
	LinkUpsert          *model.Link
	ProviderStatus      *model.ProviderStatus
	SnapshotMeta        *model.Snapshot
}
