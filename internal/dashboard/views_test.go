package dashboard

import (
	"math"
	"strings"
	"testing"

	"crew-tracker/internal/connection"
	"crew-tracker/internal/pipeline"
	"crew-tracker/internal/traccar"
	"crew-tracker/internal/tracker"
)

func member(id int64, role pipeline.Role, status pipeline.Status, coords *[2]float64) pipeline.StaffMember {
	return pipeline.StaffMember{
		ID:          id,
		Name:        "Member",
		Role:        role,
		Status:      status,
		Location:    pipeline.NoLocation,
		LastUpdate:  "unknown",
		Coordinates: coords,
	}
}

func pair(lon, lat float64) *[2]float64 { return &[2]float64{lon, lat} }

func TestRoleFiltersAndFilter(t *testing.T) {
	t.Parallel()

	staff := []pipeline.StaffMember{
		member(1, pipeline.RoleInstructor, pipeline.StatusActive, nil),
		member(2, pipeline.RolePatrol, pipeline.StatusBreak, nil),
		member(3, pipeline.RoleInstructor, pipeline.StatusInactive, nil),
	}

	filters := RoleFilters(staff)
	if strings.Join(filters, ",") != "all,instructor,patrol" {
		t.Fatalf("RoleFilters=%v", filters)
	}

	cases := []struct {
		role    string
		wantLen int
	}{
		{"all", 3},
		{"", 3},
		{"instructor", 2},
		{"patrol", 1},
		{"operations", 3}, // not present: resets to all
	}
	for _, tc := range cases {
		if got := Filter(staff, tc.role); len(got) != tc.wantLen {
			t.Fatalf("Filter(%q) len=%d want %d", tc.role, len(got), tc.wantLen)
		}
	}
	if ResolveFilter(staff, "operations") != FilterAll {
		t.Fatal("missing role should resolve to all")
	}
	if ActiveCount(staff) != 1 {
		t.Fatalf("ActiveCount=%d want 1", ActiveCount(staff))
	}
}

func TestCardsLabels(t *testing.T) {
	t.Parallel()

	cards := Cards([]pipeline.StaffMember{member(1, pipeline.RolePatrol, pipeline.StatusBreak, nil)})
	if cards[0].RoleLabel != "Ski Patrol" || cards[0].StatusLabel != "On Break" {
		t.Fatalf("card=%+v", cards[0])
	}
}

func TestMarkers(t *testing.T) {
	t.Parallel()

	m := member(1, pipeline.RoleInstructor, pipeline.StatusActive, pair(-106.8, 39.1))
	m.Name = "Jo <script>"
	staff := []pipeline.StaffMember{m, member(2, pipeline.RolePatrol, pipeline.StatusActive, nil)}

	markers := Markers(staff)
	if len(markers) != 1 {
		t.Fatalf("markers=%d want 1", len(markers))
	}
	mk := markers[0]
	if mk.Color != "#3B82F6" || mk.Coordinates != [2]float64{-106.8, 39.1} {
		t.Fatalf("marker=%+v", mk)
	}
	if strings.Contains(mk.Popup, "<script>") || !strings.Contains(mk.Popup, "Jo &lt;script&gt;") {
		t.Fatalf("popup not escaped: %s", mk.Popup)
	}
	if !strings.Contains(mk.Popup, "Status: Active") || !strings.Contains(mk.Popup, "Instructor") {
		t.Fatalf("popup=%s", mk.Popup)
	}
	if RoleColor("unknown") != "#6366F1" {
		t.Fatal("fallback colour")
	}
}

func TestComputeViewport(t *testing.T) {
	t.Parallel()

	v := ComputeViewport(nil)
	if v.Mode != ViewportDefault || v.Center != DefaultCenter || v.Zoom != 12 {
		t.Fatalf("default viewport=%+v", v)
	}

	one := []pipeline.StaffMember{member(1, pipeline.RolePatrol, pipeline.StatusActive, pair(-106.8, 39.1))}
	v = ComputeViewport(one)
	if v.Mode != ViewportFlyTo || v.Center != [2]float64{-106.8, 39.1} || v.Zoom != 14 {
		t.Fatalf("single viewport=%+v", v)
	}

	many := append(one,
		member(2, pipeline.RolePatrol, pipeline.StatusActive, pair(-106.9, 39.3)),
		member(3, pipeline.RolePatrol, pipeline.StatusActive, nil),
	)
	v = ComputeViewport(many)
	if v.Mode != ViewportFit || v.Bounds == nil {
		t.Fatalf("fit viewport=%+v", v)
	}
	if v.Bounds[0] != [2]float64{-106.9, 39.1} || v.Bounds[1] != [2]float64{-106.8, 39.3} {
		t.Fatalf("bounds=%v", *v.Bounds)
	}
	if v.Padding != 80 || v.MaxZoom != 15 {
		t.Fatalf("padding=%d maxZoom=%v", v.Padding, v.MaxZoom)
	}
	// 0.2° of latitude and 0.1° of longitude at 39°N is roughly 23.9 km.
	if math.Abs(v.SpanKm-23.9) > 1 {
		t.Fatalf("SpanKm=%v want ~23.9", v.SpanKm)
	}
}

func TestDebugMasksPassword(t *testing.T) {
	t.Parallel()

	conn := connection.Connection{BaseURL: "http://x", Username: "u", Password: "secret"}
	devices := tracker.DevicesState{Enabled: true, HasData: true, Data: []traccar.Device{{ID: 1}}}
	positions := tracker.PositionsState{Enabled: true, Err: "Traccar request failed with status 500"}

	snap := Debug(conn, true, devices, positions, []pipeline.StaffMember{member(1, pipeline.RoleOperations, pipeline.StatusInactive, nil)})
	cfg, ok := snap.Config.(connection.Connection)
	if !ok || cfg.Password != "***" {
		t.Fatalf("config=%+v", snap.Config)
	}
	if snap.Devices.DataCount != 1 || !snap.Positions.IsError {
		t.Fatalf("queries=%+v / %+v", snap.Devices, snap.Positions)
	}
	if len(snap.Staff) != 1 || snap.Staff[0].HasCoordinates {
		t.Fatalf("staff=%+v", snap.Staff)
	}

	if snap := Debug(connection.Connection{}, false, tracker.DevicesState{}, tracker.PositionsState{}, nil); snap.Config != "No config" {
		t.Fatalf("config=%v want No config", snap.Config)
	}
}
