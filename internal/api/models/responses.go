package models

import (
	"time"

	"github.com/nkkko/arrivald/pkg/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// TargetResponse is the API representation of a target
type TargetResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	State     string    `json:"state"`
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TargetFromProto converts a target record to its response model
func TargetFromProto(rec *proto.TargetRecord) *TargetResponse {
	return &TargetResponse{
		ID:        rec.Id,
		DeviceID:  rec.DeviceId,
		State:     rec.State.String(),
		Seq:       rec.Seq,
		CreatedAt: asTime(rec.CreatedAt),
		UpdatedAt: asTime(rec.UpdatedAt),
	}
}

// DeviceResponse is the API representation of a device
type DeviceResponse struct {
	ID           string    `json:"id"`
	ProviderID   uint32    `json:"provider_id"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeviceFromProto converts a device record to its response model
func DeviceFromProto(rec *proto.DeviceRecord) *DeviceResponse {
	return &DeviceResponse{
		ID:           rec.Id,
		ProviderID:   uint32(rec.ProviderId),
		FriendlyName: rec.FriendlyName,
		Description:  rec.Description,
		UpdatedAt:    asTime(rec.UpdatedAt),
	}
}

// SubscriptionResponse reports the arrival subscription state
type SubscriptionResponse struct {
	Registered bool   `json:"registered"`
	EventClass string `json:"event_class"`
}

// FireEventResponse reports how many blocks received an event
type FireEventResponse struct {
	Delivered int `json:"delivered"`
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status     string `json:"status"`
	Registered bool   `json:"registered"`
}

func asTime(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}
