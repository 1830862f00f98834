package dashboard

import (
	"fmt"
	"html"

	"golang.org/x/exp/slices"

	"crew-tracker/internal/pipeline"
)

const FilterAll = "all"

var roleLabels = map[pipeline.Role]string{
	pipeline.RolePatrol:     "Ski Patrol",
	pipeline.RoleInstructor: "Instructor",
	pipeline.RoleOperations: "Operations",
}

var roleColors = map[pipeline.Role]string{
	pipeline.RolePatrol:     "#EF4444",
	pipeline.RoleInstructor: "#3B82F6",
	pipeline.RoleOperations: "#F59E0B",
}

const fallbackColor = "#6366F1"

var statusLabels = map[pipeline.Status]string{
	pipeline.StatusActive:   "Active",
	pipeline.StatusBreak:    "On Break",
	pipeline.StatusInactive: "Inactive",
}

func RoleLabel(r pipeline.Role) string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

func RoleColor(r pipeline.Role) string {
	if c, ok := roleColors[r]; ok {
		return c
	}
	return fallbackColor
}

func StatusLabel(s pipeline.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// RoleFilters lists "all" followed by the roles present, in first-seen order.
func RoleFilters(staff []pipeline.StaffMember) []string {
	out := []string{FilterAll}
	for _, m := range staff {
		if r := string(m.Role); !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// ResolveFilter falls back to "all" when the requested role is not present.
func ResolveFilter(staff []pipeline.StaffMember, role string) string {
	if role == "" || !slices.Contains(RoleFilters(staff), role) {
		return FilterAll
	}
	return role
}

func Filter(staff []pipeline.StaffMember, role string) []pipeline.StaffMember {
	role = ResolveFilter(staff, role)
	if role == FilterAll {
		return staff
	}
	out := make([]pipeline.StaffMember, 0, len(staff))
	for _, m := range staff {
		if string(m.Role) == role {
			out = append(out, m)
		}
	}
	return out
}

func ActiveCount(staff []pipeline.StaffMember) int {
	n := 0
	for _, m := range staff {
		if m.Status == pipeline.StatusActive {
			n++
		}
	}
	return n
}

// Tracked returns the members that can be placed on the map.
func Tracked(staff []pipeline.StaffMember) []pipeline.StaffMember {
	out := make([]pipeline.StaffMember, 0, len(staff))
	for _, m := range staff {
		if m.HasCoordinates() {
			out = append(out, m)
		}
	}
	return out
}

// Card is one entry of the staff directory.
type Card struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	RoleLabel   string `json:"roleLabel"`
	Status      string `json:"status"`
	StatusLabel string `json:"statusLabel"`
	Location    string `json:"location"`
	LastUpdate  string `json:"lastUpdate"`
}

func Cards(staff []pipeline.StaffMember) []Card {
	out := make([]Card, 0, len(staff))
	for _, m := range staff {
		out = append(out, Card{
			ID:          m.ID,
			Name:        m.Name,
			Role:        string(m.Role),
			RoleLabel:   RoleLabel(m.Role),
			Status:      string(m.Status),
			StatusLabel: StatusLabel(m.Status),
			Location:    m.Location,
			LastUpdate:  m.LastUpdate,
		})
	}
	return out
}

// Marker is a map pin for one tracked member.
type Marker struct {
	ID          int64      `json:"id"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
	Color       string     `json:"color"`
	Popup       string     `json:"popup"`
}

func Markers(staff []pipeline.StaffMember) []Marker {
	tracked := Tracked(staff)
	out := make([]Marker, 0, len(tracked))
	for _, m := range tracked {
		out = append(out, Marker{
			ID:          m.ID,
			Coordinates: *m.Coordinates,
			Color:       RoleColor(m.Role),
			Popup:       PopupHTML(m),
		})
	}
	return out
}

func PopupHTML(m pipeline.StaffMember) string {
	return fmt.Sprintf(
		"<strong>%s</strong><br/>%s<br/>%s<br/><small>Status: %s<br/>Updated %s</small>",
		html.EscapeString(m.Name),
		html.EscapeString(RoleLabel(m.Role)),
		html.EscapeString(m.Location),
		html.EscapeString(StatusLabel(m.Status)),
		html.EscapeString(m.LastUpdate),
	)
}
