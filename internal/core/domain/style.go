package domain

// OverlayKind tells the rendering surface what an overlay represents.
type OverlayKind string

const (
	OverlayRay          OverlayKind = "ray"
	OverlayIntersection OverlayKind = "intersection"
	OverlayEllipse      OverlayKind = "ellipse"
)

// Style is how an overlay is drawn. Selection state lives on Ray; colour is only its projection.
type Style struct {
	Kind   OverlayKind `json:"kind"`
	Color  string      `json:"color,omitempty"`
	Weight int         `json:"weight,omitempty"`
	Popup  string      `json:"popup,omitempty"`
	RefID  string      `json:"ref_id,omitempty"`
}

// OverlayHandle identifies an overlay on a rendering surface.
type OverlayHandle int64

// RayStyle returns the style for a ray in the given selection state.
func RayStyle(r Ray) Style {
	color := "red"
	if r.Selected {
		color = "blue"
	}
	return Style{Kind: OverlayRay, Color: color, RefID: r.ID}
}

// EllipseStyle is the fitted ellipse outline.
var EllipseStyle = Style{Kind: OverlayEllipse, Color: "yellow", Weight: 2}
