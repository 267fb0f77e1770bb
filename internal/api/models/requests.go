package models

import (
	"github.com/google/uuid"
	"github.com/nkkko/arrivald/internal/api/validation"
	"github.com/nkkko/arrivald/pkg/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Longest device id or property value accepted over the API
const maxFieldLength = 1024

// AddTargetRequest is the request to track a new target
type AddTargetRequest struct {
	DeviceID string `json:"device_id"`
}

// Validate validates the request
func (r *AddTargetRequest) Validate() error {
	if err := validation.Required("device_id", r.DeviceID); err != nil {
		return err
	}
	return validation.MaxLength("device_id", r.DeviceID, maxFieldLength)
}

// PutDeviceRequest is the request to create or replace a device
type PutDeviceRequest struct {
	ProviderID   uint32 `json:"provider_id"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Validate validates the request
func (r *PutDeviceRequest) Validate() error {
	if err := validation.MaxLength("friendly_name", r.FriendlyName, maxFieldLength); err != nil {
		return err
	}
	return validation.MaxLength("description", r.Description, maxFieldLength)
}

// ToProto converts the request to a device record for id
func (r *PutDeviceRequest) ToProto(id string) *proto.DeviceRecord {
	return &proto.DeviceRecord{
		Id:           id,
		ProviderId:   proto.ProviderID(r.ProviderID),
		FriendlyName: r.FriendlyName,
		Description:  r.Description,
	}
}

// FireEventRequest is the request to fire an event into the hub.
// An empty event class means a device arrival.
type FireEventRequest struct {
	ProviderID uint32 `json:"provider_id"`
	EventClass string `json:"event_class,omitempty"`
	Body       []byte `json:"body,omitempty"`
}

// Validate validates the request
func (r *FireEventRequest) Validate() error {
	if r.EventClass == "" {
		return nil
	}
	return validation.UUID("event_class", r.EventClass)
}

// ToProto converts the request to an event record
func (r *FireEventRequest) ToProto() *proto.EventRecord {
	class := proto.DeviceArrivalEvent
	if r.EventClass != "" {
		class = uuid.MustParse(r.EventClass)
	}
	return &proto.EventRecord{
		Header: proto.EventHeader{
			ProviderId: proto.ProviderID(r.ProviderID),
			Guid:       class,
			Timestamp:  timestamppb.Now(),
		},
		Body: r.Body,
	}
}
