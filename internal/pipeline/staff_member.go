package pipeline

import "crew-tracker/internal/traccar"

type Role string

const (
	RolePatrol     Role = "patrol"
	RoleInstructor Role = "instructor"
	RoleOperations Role = "operations"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusBreak    Status = "break"
	StatusInactive Status = "inactive"
)

// StaffMember is the display view of one device and its latest position.
type StaffMember struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Role        Role              `json:"role"`
	Status      Status            `json:"status"`
	Location    string            `json:"location"`
	LastUpdate  string            `json:"lastUpdate"`
	Coordinates *[2]float64       `json:"coordinates"` // [lon, lat]
	Device      traccar.Device    `json:"device"`
	Position    *traccar.Position `json:"position,omitempty"`
}

func (m StaffMember) HasCoordinates() bool { return m.Coordinates != nil }
