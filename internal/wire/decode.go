package wire

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// ErrMalformed is returned by Unmarshal (and the nested decoders) when a
// frame's tag/length-prefix structure cannot be parsed. It never
// distinguishes between "wrong format" and "truncated" — both collapse to
// the same SubscriptionAck{success:false} path on the caller side.
var ErrMalformed = errors.New("wire: malformed frame")

// Unmarshal decodes an Envelope from its binary wire form.
func Unmarshal(data []byte) (*Envelope, error) {
	e := &Envelope{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case fieldSchemaVersion:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			e.SchemaVersion = v
			b = b[n:]
		case fieldServerTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			e.ServerTsMs = int64(v)
			b = b[n:]
		case fieldSubscriptionReq:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			req, err := unmarshalSubscriptionRequest(sub)
			if err != nil {
				return nil, err
			}
			e.SubscriptionRequest = req
			b = b[n:]
		case fieldSubscriptionAck:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			ack, err := unmarshalSubscriptionAck(sub)
			if err != nil {
				return nil, err
			}
			e.SubscriptionAck = ack
			b = b[n:]
		case fieldTrackDeltaBatch:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			batch, err := unmarshalTrackDeltaBatch(sub)
			if err != nil {
				return nil, err
			}
			e.TrackDeltaBatch = batch
			b = b[n:]
		case fieldAlertUpsert:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			alert, err := unmarshalAlert(sub)
			if err != nil {
				return nil, err
			}
			e.AlertUpsert = alert
			b = b[n:]
		case fieldLinkUpsert:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			link, err := unmarshalLink(sub)
			if err != nil {
				return nil, err
			}
			e.LinkUpsert = link
			b = b[n:]
		case fieldProviderStatus:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			status, err := unmarshalProviderStatus(sub)
			if err != nil {
				return nil, err
			}
			e.ProviderStatus = status
			b = b[n:]
		case fieldSnapshotMeta:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			snap, err := unmarshalSnapshot(sub)
			if err != nil {
				return nil, err
			}
			e.SnapshotMeta = snap
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return e, nil
}

// --- scalar consume helpers, each validating the wire type it expects ---

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, ErrMalformed
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, ErrMalformed
	}
	return v, n, nil
}

func consumeMessage(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, ErrMalformed
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, ErrMalformed
	}
	return v, n, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, ErrMalformed
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, ErrMalformed
	}
	return v, n, nil
}

func consumeDouble(b []byte, typ protowire.Type) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, ErrMalformed
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, ErrMalformed
	}
	return math.Float64frombits(v), n, nil
}

func unmarshalSubscriptionRequest(data []byte) (*SubscriptionRequest, error) {
	r := &SubscriptionRequest{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case subReqFieldMinLat:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return nil, err
			}
			r.Viewport.MinLat = v
			b = b[n:]
		case subReqFieldMinLon:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return nil, err
			}
			r.Viewport.MinLon = v
			b = b[n:]
		case subReqFieldMaxLat:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return nil, err
			}
			r.Viewport.MaxLat = v
			b = b[n:]
		case subReqFieldMaxLon:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return nil, err
			}
			r.Viewport.MaxLon = v
			b = b[n:]
		case subReqFieldLayers:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			r.Layers = append(r.Layers, model.LayerType(v))
			b = b[n:]
		case subReqFieldMode:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			r.Mode = model.SubscriptionMode(v)
			b = b[n:]
		case subReqFieldTimeRange:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			tr, err := unmarshalTimeRange(sub)
			if err != nil {
				return nil, err
			}
			r.TimeRange = tr
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return r, nil
}

func unmarshalTimeRange(data []byte) (*model.TimeRange, error) {
	tr := &model.TimeRange{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case timeRangeFieldStartTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			tr.StartTsMs = int64(v)
			b = b[n:]
		case timeRangeFieldEndTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			tr.EndTsMs = int64(v)
			b = b[n:]
		case timeRangeFieldSpeed:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return nil, err
			}
			tr.Speed = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return tr, nil
}

func unmarshalSubscriptionAck(data []byte) (*SubscriptionAck, error) {
	a := &SubscriptionAck{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case subAckFieldSuccess:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			a.Success = v != 0
			b = b[n:]
		case subAckFieldError:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.Error = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return a, nil
}

func unmarshalTrackDeltaBatch(data []byte) (*TrackDeltaBatch, error) {
	batch := &TrackDeltaBatch{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case trackBatchFieldDeltas:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			delta, err := unmarshalTrackDelta(sub)
			if err != nil {
				return nil, err
			}
			batch.Deltas = append(batch.Deltas, delta)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return batch, nil
}

func unmarshalTrackDelta(data []byte) (model.TrackDelta, error) {
	d := model.TrackDelta{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return model.TrackDelta{}, ErrMalformed
		}
		b = b[n:]

		switch num {
		case trackFieldID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.ID = v
			b = b[n:]
		case trackFieldKind:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.Kind = model.TrackKind(v)
			b = b[n:]
		case trackFieldLat:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.Lat = v
			b = b[n:]
		case trackFieldLon:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.Lon = v
			b = b[n:]
		case trackFieldAlt:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.Alt = v
			b = b[n:]
		case trackFieldHeadingDeg:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.HeadingDeg = v
			b = b[n:]
		case trackFieldSpeedMps:
			v, n, err := consumeDouble(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.SpeedMps = v
			b = b[n:]
		case trackFieldTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.TsMs = int64(v)
			b = b[n:]
		case trackFieldProviderID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			d.ProviderID = v
			b = b[n:]
		case trackFieldMeta:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return model.TrackDelta{}, err
			}
			k, v, err := unmarshalMetaEntry(sub)
			if err != nil {
				return model.TrackDelta{}, err
			}
			if d.Meta == nil {
				d.Meta = map[string]string{}
			}
			d.Meta[k] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return model.TrackDelta{}, ErrMalformed
			}
			b = b[n:]
		}
	}
	return d, nil
}

func unmarshalAlert(data []byte) (*model.Alert, error) {
	a := &model.Alert{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case alertFieldID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.ID = v
			b = b[n:]
		case alertFieldSeverity:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			a.Severity = model.AlertSeverity(v)
			b = b[n:]
		case alertFieldTitle:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.Title = v
			b = b[n:]
		case alertFieldDescription:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.Description = v
			b = b[n:]
		case alertFieldTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			a.TsMs = int64(v)
			b = b[n:]
		case alertFieldStatus:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			a.Status = model.AlertStatus(v)
			b = b[n:]
		case alertFieldEvidenceLinkIDs:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			a.EvidenceLinkIDs = append(a.EvidenceLinkIDs, v)
			b = b[n:]
		case alertFieldMeta:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			k, v, err := unmarshalMetaEntry(sub)
			if err != nil {
				return nil, err
			}
			if a.Meta == nil {
				a.Meta = map[string]string{}
			}
			a.Meta[k] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return a, nil
}

func unmarshalLink(data []byte) (*model.Link, error) {
	l := &model.Link{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case linkFieldID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			l.ID = v
			b = b[n:]
		case linkFieldFromType:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			l.FromType = v
			b = b[n:]
		case linkFieldFromID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			l.FromID = v
			b = b[n:]
		case linkFieldRel:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			l.Rel = v
			b = b[n:]
		case linkFieldToType:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			l.ToType = v
			b = b[n:]
		case linkFieldToID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			l.ToID = v
			b = b[n:]
		case linkFieldTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			l.TsMs = int64(v)
			b = b[n:]
		case linkFieldMeta:
			sub, n, err := consumeMessage(b, typ)
			if err != nil {
				return nil, err
			}
			k, v, err := unmarshalMetaEntry(sub)
			if err != nil {
				return nil, err
			}
			if l.Meta == nil {
				l.Meta = map[string]string{}
			}
			l.Meta[k] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return l, nil
}

func unmarshalProviderStatus(data []byte) (*model.ProviderStatus, error) {
	s := &model.ProviderStatus{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case statusFieldProviderID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.ProviderID = v
			b = b[n:]
		case statusFieldCircuitState:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.CircuitState = model.CircuitState(v)
			b = b[n:]
		case statusFieldFreshness:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.Freshness = model.Freshness(v)
			b = b[n:]
		case statusFieldLastSuccessTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.LastSuccessTsMs = int64(v)
			b = b[n:]
		case statusFieldFailureCount:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.FailureCount = int(v)
			b = b[n:]
		case statusFieldErrorMessage:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.ErrorMessage = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return s, nil
}

func unmarshalSnapshot(data []byte) (*model.Snapshot, error) {
	s := &model.Snapshot{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformed
		}
		b = b[n:]

		switch num {
		case snapFieldSnapshotID:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.SnapshotID = v
			b = b[n:]
		case snapFieldStartTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.StartTsMs = int64(v)
			b = b[n:]
		case snapFieldEndTsMs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.EndTsMs = int64(v)
			b = b[n:]
		case snapFieldTrackCount:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.TrackCount = int(v)
			b = b[n:]
		case snapFieldStoragePath:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.StoragePath = v
			b = b[n:]
		case snapFieldStorageBackend:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.StorageBackend = v
			b = b[n:]
		case snapFieldCompressedSizeBytes:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			s.CompressedSizeBytes = int64(v)
			b = b[n:]
		case snapFieldViewportJSON:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return nil, err
			}
			s.ViewportJSON = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
		}
	}
	return s, nil
}

func unmarshalMetaEntry(data []byte) (key, value string, err error) {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", ErrMalformed
		}
		b = b[n:]

		switch num {
		case metaFieldKey:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return "", "", err
			}
			key = v
			b = b[n:]
		case metaFieldValue:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return "", "", err
			}
			value = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", "", ErrMalformed
			}
			b = b[n:]
		}
	}
	return key, value, nil
}
