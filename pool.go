package simpleserial

import (
	"context"
	"errors"
	"time"
)

// ErrPoolClosed is returned by Acquire on a closed pool.
var ErrPoolClosed = errors.New("simpleserial: pool closed")

// Pool hands out connections to one target.
//
// Serial ports can only be opened once: pools for serial targets must be
// created with a maximum size of 1.
type Pool interface {
	Acquire(ctx context.Context) (Resource, error)
	AcquireAllIdle() []Resource
	Close()
	Stats() PoolStats
}

// Resource is a connection checked out of a Pool. Exactly one of Release,
// ReleaseUnused or Destroy must be called.
type Resource interface {
	Value() *Conn
	Release()
	ReleaseUnused()
	Destroy()
	CreationTime() time.Time
	IdleDuration() time.Duration
}

// PoolFactory builds a Pool from a connection constructor.
type PoolFactory func(constructor func(ctx context.Context) (*Conn, error), maxSize int32) (Pool, error)
