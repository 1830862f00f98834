package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"crew-tracker/internal/traccar"
)

const (
	NoLocation      = "No recent location"
	UnknownTime     = "unknown"
	roleAttributeID = "role"
)

// PositionIndex maps a device id to its latest position.
type PositionIndex map[int64]traccar.Position

// IndexPositions builds a fresh index; for repeated device ids the later
// entry wins. Callers rebuild it on every new position snapshot.
func IndexPositions(positions []traccar.Position) PositionIndex {
	idx := make(PositionIndex, len(positions))
	for _, p := range positions {
		idx[p.DeviceID] = p
	}
	return idx
}

// MapStaff yields exactly one StaffMember per device, in device order.
func MapStaff(devices []traccar.Device, idx PositionIndex, now time.Time) []StaffMember {
	out := make([]StaffMember, 0, len(devices))
	for _, d := range devices {
		out = append(out, BuildStaffMember(d, idx, now))
	}
	return out
}

func BuildStaffMember(d traccar.Device, idx PositionIndex, now time.Time) StaffMember {
	m := StaffMember{
		ID:         d.ID,
		Name:       d.Name,
		Role:       MapRole(d),
		Status:     MapStatus(d.Status),
		Location:   NoLocation,
		LastUpdate: RelativeTime(d.LastUpdate, now),
		Device:     d,
	}
	if m.Name == "" {
		m.Name = fmt.Sprintf("Device %d", d.ID)
	}

	p, ok := idx[d.ID]
	if !ok {
		return m
	}
	m.Position = &p
	m.Location = FormatLocation(&p)
	if p.HasCoordinates() {
		m.Coordinates = &[2]float64{*p.Longitude, *p.Latitude}
	}
	m.LastUpdate = RelativeTime(firstNonEmpty(p.DeviceTime, p.FixTime, d.LastUpdate), now)
	return m
}

// MapRole reads the "role" attribute; anything outside the known set is
// operations.
func MapRole(d traccar.Device) Role {
	raw, ok := d.Attributes[roleAttributeID].(string)
	if !ok {
		return RoleOperations
	}
	switch r := Role(strings.ToLower(raw)); r {
	case RolePatrol, RoleInstructor, RoleOperations:
		return r
	}
	return RoleOperations
}

func MapStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "online", "moving", "active":
		return StatusActive
	case "idle", "maintenance", "break":
		return StatusBreak
	}
	return StatusInactive
}

// FormatLocation prefers the reverse-geocoded address, then "lat, lon"
// at five decimals.
func FormatLocation(p *traccar.Position) string {
	if p == nil {
		return NoLocation
	}
	if strings.TrimSpace(p.Address) != "" {
		return p.Address
	}
	if p.HasCoordinates() {
		return fmt.Sprintf("%.5f, %.5f", *p.Latitude, *p.Longitude)
	}
	return NoLocation
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the ISO-8601 shapes Traccar emits. Layouts
// without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

const day = 24 * time.Hour

type relUnit struct {
	below time.Duration // used while the distance is under this
	size  time.Duration
	name  string
}

// relUnits never skips to weeks: days run up to 30, months up to a year.
var relUnits = []relUnit{
	{time.Minute, time.Second, "second"},
	{time.Hour, time.Minute, "minute"},
	{day, time.Hour, "hour"},
	{30 * day, day, "day"},
	{365 * day, 30 * day, "month"},
	{math.MaxInt64, 365 * day, "year"},
}

// RelativeTime renders raw relative to now in a single unit rounded to the
// nearest whole: "15 minutes ago", "2 hours ago", "in 3 minutes".
func RelativeTime(raw string, now time.Time) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return UnknownTime
	}
	future := t.After(now)
	dist := now.Sub(t)
	if future {
		dist = -dist
	}
	if dist < 0 { // saturated
		dist = math.MaxInt64
	}

	u := relUnits[len(relUnits)-1]
	for _, c := range relUnits {
		if dist < c.below {
			u = c
			break
		}
	}
	n := int64(math.Round(float64(dist) / float64(u.size)))
	if u.name == "month" && n == 12 {
		u, n = relUnits[len(relUnits)-1], 1
	}

	mag := humanize.RelTimeMagnitude{D: math.MaxInt64, Format: "%d " + u.name + "s %s", DivBy: u.size}
	if n == 1 {
		mag.Format = "1 " + u.name + " %s"
	}
	span := time.Duration(n) * u.size
	if future {
		s := humanize.CustomRelTime(now.Add(span), now, "ago", "", []humanize.RelTimeMagnitude{mag})
		return "in " + strings.TrimSpace(s)
	}
	return humanize.CustomRelTime(now.Add(-span), now, "ago", "", []humanize.RelTimeMagnitude{mag})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
