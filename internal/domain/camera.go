package domain

import (
	"errors"
	"time"
)

var (
	ErrCameraNotFound   = errors.New("camera not found")
	ErrAlreadyStreaming = errors.New("already streaming")
	ErrUnknownConn      = errors.New("connection not registered")
)

type CameraID string

// Camera is a live broadcast advertised by exactly one streaming connection.
// Viewers mirrors the number of connections currently viewing it.
type Camera struct {
	ID        CameraID  `json:"id"`
	Name      string    `json:"name"`
	Owner     ConnID    `json:"-"`
	Viewers   int       `json:"viewers"`
	CreatedAt time.Time `json:"started_at"`
}
