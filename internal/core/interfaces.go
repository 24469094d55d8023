package core

import (
	"errors"

	"github.com/dkeye/camrelay/internal/domain"
)

var ErrNotConnected = errors.New("connection not attached")

// Frame is a raw encoded message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnID
}
