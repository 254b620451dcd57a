// Package bcf saves and applies BCF 2.1 viewpoints: camera pose, clipping
// planes and per-object visibility, selection and coloring state, exchanged
// as JSON between BIM tools. BCF is Z-up; a Recorder over a Y-up scene
// converts coordinates both ways.
package bcf

import "encoding/json"

// Point is a BCF coordinate triple, also used for directions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PerspectiveCamera is the perspective camera record.
type PerspectiveCamera struct {
	CameraViewPoint Point   `json:"camera_view_point"`
	CameraDirection Point   `json:"camera_direction"`
	CameraUpVector  Point   `json:"camera_up_vector"`
	FieldOfView     float64 `json:"field_of_view"`
}

// OrthogonalCamera is the orthographic camera record.
type OrthogonalCamera struct {
	CameraViewPoint  Point   `json:"camera_view_point"`
	CameraDirection  Point   `json:"camera_direction"`
	CameraUpVector   Point   `json:"camera_up_vector"`
	ViewToWorldScale float64 `json:"view_to_world_scale"`
}

// Component references one object by its IFC GUID.
type Component struct {
	IfcGUID           string `json:"ifc_guid"`
	OriginatingSystem string `json:"originating_system,omitempty"`
	AuthoringToolID   string `json:"authoring_tool_id,omitempty"`
}

// ViewSetupHints carry the space/opening visibility toggles.
type ViewSetupHints struct {
	SpacesVisible          bool `json:"spaces_visible"`
	SpaceBoundariesVisible bool `json:"space_boundaries_visible"`
	OpeningsVisible        bool `json:"openings_visible"`
}

// Visibility stores object visibility as a default plus an exception list.
type Visibility struct {
	DefaultVisibility bool            `json:"default_visibility"`
	Exceptions        []Component     `json:"exceptions,omitempty"`
	ViewSetupHints    *ViewSetupHints `json:"view_setup_hints,omitempty"`
}

// Coloring paints a set of components with one color, an ARGB or RGB hex
// string without leading #.
type Coloring struct {
	Color      string      `json:"color"`
	Components []Component `json:"components"`
}

// Components is the object-state section of a viewpoint.
type Components struct {
	Visibility *Visibility `json:"visibility,omitempty"`
	Selection  []Component `json:"selection,omitempty"`
	Coloring   []Coloring  `json:"coloring,omitempty"`
}

// ClippingPlane is a section plane in world space.
type ClippingPlane struct {
	Location  Point `json:"location"`
	Direction Point `json:"direction"`
}

// Snapshot carries an embedded image of the viewpoint.
type Snapshot struct {
	SnapshotType string `json:"snapshot_type"`
	SnapshotData string `json:"snapshot_data"`
}

// Viewpoint is a BCF 2.1 viewpoint document.
type Viewpoint struct {
	PerspectiveCamera *PerspectiveCamera `json:"perspective_camera,omitempty"`
	OrthogonalCamera  *OrthogonalCamera  `json:"orthogonal_camera,omitempty"`
	ClippingPlanes    []ClippingPlane    `json:"clipping_planes,omitempty"`
	Components        *Components        `json:"components,omitempty"`
	Snapshot          *Snapshot          `json:"snapshot,omitempty"`
}

// Parse decodes a viewpoint document.
func Parse(data []byte) (*Viewpoint, error) {
	var vp Viewpoint
	if err := json.Unmarshal(data, &vp); err != nil {
		return nil, err
	}
	return &vp, nil
}

// Encode serializes the viewpoint as JSON.
func (vp *Viewpoint) Encode() ([]byte, error) {
	return json.Marshal(vp)
}
