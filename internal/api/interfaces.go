package api

import (
	"context"

	"github.com/nkkko/arrivald/pkg/proto"
)

// TargetManager manages the lifecycle of tracked targets
type TargetManager interface {
	Add(ctx context.Context, deviceID string) (*proto.TargetRecord, error)
	Start(ctx context.Context, id string) (*proto.TargetRecord, error)
	Stop(ctx context.Context, id string) (*proto.TargetRecord, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*proto.TargetRecord, error)
	List(ctx context.Context) []*proto.TargetRecord
}

// DeviceManager manages device properties and provider bindings
type DeviceManager interface {
	Put(ctx context.Context, rec *proto.DeviceRecord) error
	Get(ctx context.Context, id string) (*proto.DeviceRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*proto.DeviceRecord, error)
}

// EventFirer injects events into the notification source
type EventFirer interface {
	Fire(ctx context.Context, rec *proto.EventRecord) int
}

// SubscriptionStatus reports whether the arrival subscription is live
type SubscriptionStatus interface {
	Registered() bool
}
