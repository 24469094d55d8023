package app

import "github.com/dkeye/camrelay/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose send queue is full
// when a fan-out notification is published.
type Policy interface {
	OnBackPressure(id domain.ConnID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ConnID) BackpressureAction {
	return KickMember
}

// LenientPolicy keeps slow connections; they simply miss the notification.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(domain.ConnID) BackpressureAction {
	return NoAction
}
