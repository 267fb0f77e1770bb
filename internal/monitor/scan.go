package monitor

import (
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/pkg/proto"
)

// Verdict is what the scan decided about one target
type Verdict int

const (
	// VerdictNotStarted means the target was skipped because it is not open
	VerdictNotStarted Verdict = iota

	// VerdictNoProvider means the target is not bound to any provider
	VerdictNoProvider

	// VerdictOtherProvider means the target belongs to a different provider
	VerdictOtherProvider

	// VerdictUnknownEvent means the provider matched but the event class did not
	VerdictUnknownEvent

	// VerdictMatch means the target fired the device arrival event
	VerdictMatch
)

func (v Verdict) String() string {
	switch v {
	case VerdictNotStarted:
		return "not_started"
	case VerdictNoProvider:
		return "no_provider"
	case VerdictOtherProvider:
		return "other_provider"
	case VerdictUnknownEvent:
		return "unknown_event"
	case VerdictMatch:
		return "match"
	default:
		return "unknown"
	}
}

// Visit records the verdict for one evaluated target
type Visit struct {
	Target  domain.Target
	Verdict Verdict
}

// ScanResult lists every evaluated target in order. Match is the target
// that fired the event, or nil.
type ScanResult struct {
	Visits []Visit
	Match  domain.Target
}

// Scan walks targets in order and stops at the first started target whose
// provider fired a device arrival event. A provider match with a different
// event class is recorded as VerdictUnknownEvent and scanning continues.
// Targets after the match are never evaluated.
func Scan(rec *proto.EventRecord, targets []domain.Target, lookup domain.ProviderLookup) ScanResult {
	var res ScanResult

	for _, t := range targets {
		if t.State() != proto.TargetState_STARTED {
			res.Visits = append(res.Visits, Visit{Target: t, Verdict: VerdictNotStarted})
			continue
		}

		provider, ok := lookup.ProviderOf(t)
		if !ok {
			res.Visits = append(res.Visits, Visit{Target: t, Verdict: VerdictNoProvider})
			continue
		}

		if provider != rec.Header.ProviderId {
			res.Visits = append(res.Visits, Visit{Target: t, Verdict: VerdictOtherProvider})
			continue
		}

		if rec.Header.Guid != proto.DeviceArrivalEvent {
			res.Visits = append(res.Visits, Visit{Target: t, Verdict: VerdictUnknownEvent})
			continue
		}

		res.Visits = append(res.Visits, Visit{Target: t, Verdict: VerdictMatch})
		res.Match = t
		break
	}

	return res
}
