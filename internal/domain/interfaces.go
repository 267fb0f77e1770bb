package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/nkkko/arrivald/pkg/proto"
)

// Target is a tracked handle to a device-like resource
type Target interface {
	// ID returns the stable identifier of the target
	ID() string

	// DeviceID returns the device the target is opened on
	DeviceID() string

	// State returns the current lifecycle state
	State() proto.TargetState
}

// TargetRegistry is an ordered, lock-guarded collection of targets.
// Targets may only be called while the lock is held; the returned slice is
// in insertion order and must not be retained after Unlock.
type TargetRegistry interface {
	Lock()
	Unlock()
	Targets() []Target
}

// ProviderLookup maps a target to the provider that fires its events
type ProviderLookup interface {
	// ProviderOf returns false when the target is not bound to a provider
	ProviderOf(t Target) (proto.ProviderID, bool)
}

// PropertyQuerier reads device properties of a target
type PropertyQuerier interface {
	// QueryProperty returns an owned buffer the caller must Release
	QueryProperty(ctx context.Context, t Target, kind proto.PropertyKind) (*proto.ResolvedName, error)
}

// NotificationHandler receives events delivered on a notification block.
// The record is only valid for the duration of the call.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, rec *proto.EventRecord)
}

// NotificationHandlerFunc adapts a function to NotificationHandler
type NotificationHandlerFunc func(ctx context.Context, rec *proto.EventRecord)

// HandleNotification calls f(ctx, rec)
func (f NotificationHandlerFunc) HandleNotification(ctx context.Context, rec *proto.EventRecord) {
	f(ctx, rec)
}

// NotificationBlock is an open notification channel for one event class
type NotificationBlock interface {
	ID() string
	Class() uuid.UUID
}

// NotificationSource opens notification blocks and delivers events on them
type NotificationSource interface {
	// Open opens a block for the given event class
	Open(ctx context.Context, class uuid.UUID) (NotificationBlock, error)

	// SetCallback installs the handler invoked for events on the block
	SetCallback(block NotificationBlock, h NotificationHandler) error

	// Close releases the block. Closing an already closed block is a no-op.
	Close(block NotificationBlock)
}
