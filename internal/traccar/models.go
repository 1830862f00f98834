package traccar

// Device is a tracked unit as returned by GET /api/devices. Timestamps stay
// as the raw strings the server sent.
type Device struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	UniqueID   string         `json:"uniqueId,omitempty"`
	Status     string         `json:"status,omitempty"`
	LastUpdate string         `json:"lastUpdate,omitempty"`
	PositionID int64          `json:"positionId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Position is a single fix as returned by GET /api/positions.
type Position struct {
	ID         int64          `json:"id"`
	DeviceID   int64          `json:"deviceId"`
	Latitude   *float64       `json:"latitude"`
	Longitude  *float64       `json:"longitude"`
	Address    string         `json:"address,omitempty"`
	Speed      *float64       `json:"speed,omitempty"`
	Course     *float64       `json:"course,omitempty"`
	Accuracy   *float64       `json:"accuracy,omitempty"`
	Altitude   *float64       `json:"altitude,omitempty"`
	DeviceTime string         `json:"deviceTime,omitempty"`
	FixTime    string         `json:"fixTime,omitempty"`
	ServerTime string         `json:"serverTime,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (p Position) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}
