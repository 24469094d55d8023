package domain

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
)

const (
	cameraIDLen      = 12
	cameraIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	nameAdjectives = []string{
		"Red", "Blue", "Green", "Yellow", "Purple", "Orange", "Pink", "Cyan",
		"Silver", "Golden", "Swift", "Bright", "Dark", "Light", "Quick",
	}
	nameNouns = []string{
		"Eagle", "Tiger", "Dragon", "Falcon", "Phoenix", "Wolf", "Bear", "Hawk",
		"Lion", "Panther", "Viper", "Raven", "Storm", "Thunder", "Blaze",
	}
)

// NewCameraID draws a 12 character [a-z0-9] id from crypto/rand.
// Callers check it against the live set.
func NewCameraID() CameraID {
	var buf [cameraIDLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("camera id: %v", err))
	}
	for i, b := range buf {
		buf[i] = cameraIDAlphabet[int(b)%len(cameraIDAlphabet)]
	}
	return CameraID(buf[:])
}

// NewCameraName returns a display name like "Swift_Falcon_417".
func NewCameraName() string {
	return fmt.Sprintf("%s_%s_%d",
		nameAdjectives[mrand.IntN(len(nameAdjectives))],
		nameNouns[mrand.IntN(len(nameNouns))],
		100+mrand.IntN(900),
	)
}
