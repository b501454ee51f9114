package models

import "time"

// Status is the coarse availability state of the dispatch service.
type Status string

const (
	StatusOnline  Status = "online"
	StatusTesting Status = "testing"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusTesting, StatusOffline:
		return true
	}
	return false
}

// StatusRecord is the single logical "current" service status row. Each
// update replaces the previous record wholesale; no history is kept.
type StatusRecord struct {
	Status    Status
	Message   string
	ETA       string
	UpdatedBy string
	UpdatedAt time.Time
}
