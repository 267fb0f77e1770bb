package proto

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// DeviceArrivalEvent is the event class fired by a device function driver
// when a new device instance comes up.
var DeviceArrivalEvent = uuid.MustParse("01cdaff1-c901-45b4-b359-b5542725e29c")

// ProviderID identifies the driver instance that produced an event.
// The zero value means "no provider".
type ProviderID uint32

// TargetState is the lifecycle state of a tracked target
type TargetState int32

const (
	TargetState_CREATED TargetState = 0
	TargetState_STARTED TargetState = 1
	TargetState_STOPPED TargetState = 2
	TargetState_REMOVED TargetState = 3
)

var targetStateNames = map[TargetState]string{
	TargetState_CREATED: "created",
	TargetState_STARTED: "started",
	TargetState_STOPPED: "stopped",
	TargetState_REMOVED: "removed",
}

// String returns the lowercase state name
func (s TargetState) String() string {
	if name, ok := targetStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TargetState(%d)", int32(s))
}

// MarshalText encodes the state as its name
func (s TargetState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *TargetState) UnmarshalText(b []byte) error {
	want := strings.ToLower(string(b))
	for state, name := range targetStateNames {
		if name == want {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown target state %q", string(b))
}

// PropertyKind selects a device property
type PropertyKind int32

const (
	PropertyKind_FRIENDLY_NAME      PropertyKind = 0
	PropertyKind_DEVICE_DESCRIPTION PropertyKind = 1
)

// String returns the property name used in logs and metric labels
func (k PropertyKind) String() string {
	switch k {
	case PropertyKind_FRIENDLY_NAME:
		return "friendly_name"
	case PropertyKind_DEVICE_DESCRIPTION:
		return "device_description"
	default:
		return fmt.Sprintf("PropertyKind(%d)", int32(k))
	}
}

// EventHeader identifies who fired an event and what kind it is
type EventHeader struct {
	ProviderId ProviderID             `json:"provider_id"`
	Guid       uuid.UUID              `json:"guid"`
	Timestamp  *timestamppb.Timestamp `json:"timestamp,omitempty"`
}

// EventRecord is a single notification delivered by the event source.
// Body is opaque and owned by the source for the duration of a callback.
type EventRecord struct {
	Header EventHeader `json:"header"`
	Body   []byte      `json:"body,omitempty"`
}

// TargetRecord is the persisted form of a tracked target
type TargetRecord struct {
	Id        string                 `json:"id"`
	DeviceId  string                 `json:"device_id"`
	State     TargetState            `json:"state"`
	Seq       uint64                 `json:"seq"`
	CreatedAt *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

// DeviceRecord holds the properties of a device a target can be opened on
type DeviceRecord struct {
	Id           string                 `json:"id"`
	ProviderId   ProviderID             `json:"provider_id"`
	FriendlyName string                 `json:"friendly_name,omitempty"`
	Description  string                 `json:"description,omitempty"`
	UpdatedAt    *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

// Property returns the value of the given property, or "" if it is unset
func (d *DeviceRecord) Property(kind PropertyKind) string {
	switch kind {
	case PropertyKind_FRIENDLY_NAME:
		return d.FriendlyName
	case PropertyKind_DEVICE_DESCRIPTION:
		return d.Description
	default:
		return ""
	}
}
