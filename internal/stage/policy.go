package stage

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Policy decides what happens to a batch that arrives while a plan is in flight.
type Policy interface {
	// Name returns the policy identifier ("drop", "queue").
	Name() string

	// Admit reserves the stage for one planning call. It returns false when the
	// batch must be shed. A true result must be paired with one Release.
	Admit(ctx context.Context) bool

	// Release frees the reservation taken by Admit.
	Release()
}

// DropPolicy sheds any batch that arrives while a plan is in flight. The check
// never waits.
type DropPolicy struct {
	slot *semaphore.Weighted
}

// NewDropPolicy returns the at-most-one-in-flight policy.
func NewDropPolicy() *DropPolicy {
	return &DropPolicy{slot: semaphore.NewWeighted(1)}
}

// Name returns "drop".
func (p *DropPolicy) Name() string { return "drop" }

// Admit takes the slot if it is free.
func (p *DropPolicy) Admit(context.Context) bool { return p.slot.TryAcquire(1) }

// Release frees the slot.
func (p *DropPolicy) Release() { p.slot.Release(1) }

// QueuePolicy serializes overlapping batches: each waits for the one in flight.
// A waiter whose context ends is shed.
type QueuePolicy struct {
	slot *semaphore.Weighted
}

// NewQueuePolicy returns the serializing policy.
func NewQueuePolicy() *QueuePolicy {
	return &QueuePolicy{slot: semaphore.NewWeighted(1)}
}

// Name returns "queue".
func (p *QueuePolicy) Name() string { return "queue" }

// Admit waits for the slot.
func (p *QueuePolicy) Admit(ctx context.Context) bool { return p.slot.Acquire(ctx, 1) == nil }

// Release frees the slot.
func (p *QueuePolicy) Release() { p.slot.Release(1) }

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return NewDropPolicy(), nil
	case "queue":
		return NewQueuePolicy(), nil
	default:
		return nil, fmt.Errorf("unknown overlap policy %q", name)
	}
}
