package models

import (
	"fmt"
	"image/color"
	"strings"
)

// Status is the confirmation state of an incident
type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusSuspected   Status = "suspected"
	StatusConfirmed   Status = "confirmed"
	StatusSighted     Status = "sighted"
)

// Statuses lists every status in ascending severity
var Statuses = []Status{StatusSighted, StatusUnconfirmed, StatusSuspected, StatusConfirmed}

// Severity orders statuses: confirmed > suspected > unconfirmed > sighted.
// Unknown statuses rank below sighted.
func (s Status) Severity() int {
	switch s {
	case StatusConfirmed:
		return 3
	case StatusSuspected:
		return 2
	case StatusUnconfirmed:
		return 1
	case StatusSighted:
		return 0
	default:
		return -1
	}
}

// Color returns the marker colour for the status
func (s Status) Color() color.NRGBA {
	switch s {
	case StatusConfirmed:
		return color.NRGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff} // red
	case StatusSuspected:
		return color.NRGBA{R: 0xf9, G: 0x73, B: 0x16, A: 0xff} // orange
	case StatusUnconfirmed:
		return color.NRGBA{R: 0xea, G: 0xb3, B: 0x08, A: 0xff} // amber
	case StatusSighted:
		return color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff} // blue
	default:
		return color.NRGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s.Severity() >= 0
}

// ParseStatus parses a status name case-insensitively
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown incident status %q", v)
	}
	return s, nil
}

// Marker is one incident as the map engine sees it.
// The engine treats a marker slice as an immutable snapshot.
type Marker struct {
	ID     string  `json:"id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Status Status  `json:"status"`
}
