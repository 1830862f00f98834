package dashboard

import (
	geo "github.com/kellydunn/golang-geo"

	"crew-tracker/internal/pipeline"
)

type ViewportMode string

const (
	ViewportDefault ViewportMode = "default"
	ViewportFlyTo   ViewportMode = "flyTo"
	ViewportFit     ViewportMode = "fitBounds"
)

var DefaultCenter = [2]float64{-106.8175, 39.1911}

const (
	defaultZoom  = 12
	defaultPitch = 45
	flyToZoom    = 14
	fitPadding   = 80
	fitMaxZoom   = 15
)

// Viewport tells the map where to look. Coordinates are [lon, lat].
type Viewport struct {
	Mode    ViewportMode   `json:"mode"`
	Center  [2]float64     `json:"center"`
	Zoom    float64        `json:"zoom,omitempty"`
	Pitch   float64        `json:"pitch,omitempty"`
	Bounds  *[2][2]float64 `json:"bounds,omitempty"` // [south-west, north-east]
	Padding int            `json:"padding,omitempty"`
	MaxZoom float64        `json:"maxZoom,omitempty"`
	// SpanKm is the great-circle length of the bounds diagonal.
	SpanKm float64 `json:"spanKm,omitempty"`
}

func ComputeViewport(staff []pipeline.StaffMember) Viewport {
	tracked := Tracked(staff)
	switch len(tracked) {
	case 0:
		return Viewport{Mode: ViewportDefault, Center: DefaultCenter, Zoom: defaultZoom, Pitch: defaultPitch}
	case 1:
		return Viewport{Mode: ViewportFlyTo, Center: *tracked[0].Coordinates, Zoom: flyToZoom}
	}

	sw := *tracked[0].Coordinates
	ne := sw
	for _, m := range tracked[1:] {
		c := *m.Coordinates
		sw[0], sw[1] = min(sw[0], c[0]), min(sw[1], c[1])
		ne[0], ne[1] = max(ne[0], c[0]), max(ne[1], c[1])
	}
	span := geo.NewPoint(sw[1], sw[0]).GreatCircleDistance(geo.NewPoint(ne[1], ne[0]))

	return Viewport{
		Mode:    ViewportFit,
		Center:  [2]float64{(sw[0] + ne[0]) / 2, (sw[1] + ne[1]) / 2},
		Bounds:  &[2][2]float64{sw, ne},
		Padding: fitPadding,
		MaxZoom: fitMaxZoom,
		SpanKm:  span,
	}
}
