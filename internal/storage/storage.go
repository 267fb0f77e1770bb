package storage

import (
	"context"

	"github.com/nkkko/arrivald/pkg/proto"
)

// Storage persists tracked targets and device properties.
// Event history is never stored.
type Storage interface {
	// Start begins background maintenance
	Start(ctx context.Context) error

	// Shutdown flushes and closes the store
	Shutdown(ctx context.Context) error

	// NextSequence returns a monotonically increasing insertion sequence
	NextSequence(ctx context.Context) (uint64, error)

	// PutTarget creates or replaces a target record
	PutTarget(ctx context.Context, rec *proto.TargetRecord) error

	// DeleteTarget removes a target record
	DeleteTarget(ctx context.Context, id string) error

	// ListTargets returns all target records ordered by Seq
	ListTargets(ctx context.Context) ([]*proto.TargetRecord, error)

	// PutDevice creates or replaces a device record
	PutDevice(ctx context.Context, rec *proto.DeviceRecord) error

	// GetDevice retrieves a device record by ID
	GetDevice(ctx context.Context, id string) (*proto.DeviceRecord, error)

	// DeleteDevice removes a device record
	DeleteDevice(ctx context.Context, id string) error

	// ListDevices returns all device records ordered by ID
	ListDevices(ctx context.Context) ([]*proto.DeviceRecord, error)
}
