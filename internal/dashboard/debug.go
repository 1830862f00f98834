package dashboard

import (
	"crew-tracker/internal/connection"
	"crew-tracker/internal/pipeline"
	"crew-tracker/internal/traccar"
	"crew-tracker/internal/tracker"
)

type QueryDebug struct {
	Enabled   bool   `json:"enabled"`
	IsLoading bool   `json:"isLoading"`
	IsError   bool   `json:"isError"`
	Error     string `json:"error,omitempty"`
	DataCount int    `json:"dataCount"`
	Data      any    `json:"data"`
}

type StaffDebug struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Role           pipeline.Role     `json:"role"`
	Status         pipeline.Status   `json:"status"`
	HasCoordinates bool              `json:"hasCoordinates"`
	Coordinates    *[2]float64       `json:"coordinates"`
	Position       *traccar.Position `json:"position,omitempty"`
}

// DebugSnapshot mirrors what an operator needs to diagnose an empty map.
type DebugSnapshot struct {
	Config    any          `json:"config"`
	Devices   QueryDebug   `json:"devices"`
	Positions QueryDebug   `json:"positions"`
	Staff     []StaffDebug `json:"staff"`
}

func Debug(conn connection.Connection, ok bool, devices tracker.DevicesState, positions tracker.PositionsState, staff []pipeline.StaffMember) DebugSnapshot {
	snap := DebugSnapshot{
		Config: "No config",
		Devices: QueryDebug{
			Enabled:   devices.Enabled,
			IsLoading: devices.Loading,
			IsError:   devices.IsError(),
			Error:     devices.Err,
			DataCount: len(devices.Data),
			Data:      devices.Data,
		},
		Positions: QueryDebug{
			Enabled:   positions.Enabled,
			IsLoading: positions.Loading,
			IsError:   positions.IsError(),
			Error:     positions.Err,
			DataCount: len(positions.Data),
			Data:      positions.Data,
		},
		Staff: make([]StaffDebug, 0, len(staff)),
	}
	if ok {
		snap.Config = conn.Masked()
	}
	for _, m := range staff {
		snap.Staff = append(snap.Staff, StaffDebug{
			ID:             m.ID,
			Name:           m.Name,
			Role:           m.Role,
			Status:         m.Status,
			HasCoordinates: m.HasCoordinates(),
			Coordinates:    m.Coordinates,
			Position:       m.Position,
		})
	}
	return snap
}
