// Package domain contains entities without logic, just meta-data
package domain

// ConnID is the transport-assigned identity of one live signaling connection.
// It is never reused after the connection goes away.
type ConnID string
