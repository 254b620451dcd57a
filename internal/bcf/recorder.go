package bcf

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/bimkit/bimkit/internal/math3d"
)

// Recorder converts between a viewer scene and BCF viewpoints.
type Recorder struct {
	scene SceneState
	yUp   bool
	log   *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithZUpScene marks the scene as already Z-up, disabling axis conversion.
func WithZUpScene() Option {
	return func(r *Recorder) { r.yUp = false }
}

// WithLogger sets the recorder logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// NewRecorder creates a Recorder over a scene. Scenes are assumed Y-up and
// converted to BCF's Z-up convention unless WithZUpScene is given.
func NewRecorder(scene SceneState, opts ...Option) *Recorder {
	r := &Recorder{scene: scene, yUp: true, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveOptions control viewpoint capture.
type SaveOptions struct {
	// View setup hints recorded alongside visibility.
	SpacesVisible          bool
	SpaceBoundariesVisible bool
	OpeningsVisible        bool

	// DefaultInvisible forces default_visibility=false with the visible set
	// as exceptions, regardless of which list is shorter.
	DefaultInvisible bool

	// Snapshot embeds the scene's current snapshot image.
	Snapshot bool

	// ReverseClippingPlanes flips section plane directions on save.
	ReverseClippingPlanes bool
}

// Save captures the scene as a viewpoint.
func (r *Recorder) Save(opts SaveOptions) *Viewpoint {
	vp := &Viewpoint{}

	camera := r.scene.Camera()
	direction := camera.Look.Sub(camera.Eye).Normalized()
	eye := r.toBCF(camera.Eye)
	dir := r.toBCF(direction)
	up := r.toBCF(camera.Up)

	if camera.Projection == ProjectionOrtho {
		vp.OrthogonalCamera = &OrthogonalCamera{
			CameraViewPoint:  toPoint(eye),
			CameraDirection:  toPoint(dir),
			CameraUpVector:   toPoint(up),
			ViewToWorldScale: camera.Scale,
		}
	} else {
		fov := camera.FOV
		if fov == 0 {
			fov = 60
		}
		vp.PerspectiveCamera = &PerspectiveCamera{
			CameraViewPoint: toPoint(eye),
			CameraDirection: toPoint(dir),
			CameraUpVector:  toPoint(up),
			FieldOfView:     fov,
		}
	}

	vp.Components = r.saveComponents(opts)

	for _, plane := range r.scene.Planes() {
		direction := plane.Direction
		if opts.ReverseClippingPlanes {
			direction = direction.Scale(-1)
		}
		vp.ClippingPlanes = append(vp.ClippingPlanes, ClippingPlane{
			Location:  toPoint(r.toBCF(plane.Position)),
			Direction: toPoint(r.toBCF(direction)),
		})
	}

	if opts.Snapshot {
		if data := r.scene.SnapshotPNG(); data != "" {
			vp.Snapshot = &Snapshot{SnapshotType: "png", SnapshotData: data}
		}
	}
	return vp
}

// saveComponents serializes visibility, selection and coloring. Visibility
// is stored as a default plus the smaller exception set.
func (r *Recorder) saveComponents(opts SaveOptions) *Components {
	ids := r.scene.ObjectIDs()

	var visible, hidden, selected []string
	colorGroups := make(map[string][]string)
	for _, id := range ids {
		if r.scene.ObjectVisible(id) {
			visible = append(visible, id)
		} else {
			hidden = append(hidden, id)
		}
		if r.scene.ObjectSelected(id) {
			selected = append(selected, id)
		}
		if color, ok := r.scene.ObjectColor(id); ok {
			colorGroups[color] = append(colorGroups[color], id)
		}
	}

	visibility := &Visibility{
		ViewSetupHints: &ViewSetupHints{
			SpacesVisible:          opts.SpacesVisible,
			SpaceBoundariesVisible: opts.SpaceBoundariesVisible,
			OpeningsVisible:        opts.OpeningsVisible,
		},
	}
	switch {
	case opts.DefaultInvisible, len(visible) < len(hidden):
		visibility.DefaultVisibility = false
		visibility.Exceptions = toComponents(visible)
	default:
		visibility.DefaultVisibility = true
		visibility.Exceptions = toComponents(hidden)
	}

	components := &Components{
		Visibility: visibility,
		Selection:  toComponents(selected),
	}
	for _, color := range sortedKeys(colorGroups) {
		components.Coloring = append(components.Coloring, Coloring{
			Color:      color,
			Components: toComponents(colorGroups[color]),
		})
	}
	return components
}

// ApplyOptions control viewpoint playback.
type ApplyOptions struct {
	// Reset clears selection, coloring and section planes before applying.
	Reset bool

	// ReverseClippingPlanes flips section plane directions on apply.
	ReverseClippingPlanes bool
}

// Apply replays a viewpoint onto the scene. The camera look point is
// reconstructed one unit along the stored direction: BCF keeps no look
// distance, so the original point of interest is lost.
func (r *Recorder) Apply(vp *Viewpoint, opts ApplyOptions) error {
	if vp == nil {
		return errors.New("bcf: nil viewpoint")
	}

	if opts.Reset {
		for _, id := range r.scene.ObjectIDs() {
			r.scene.SetObjectSelected(id, false)
		}
		r.scene.ClearObjectColors()
		r.scene.SetPlanes(nil)
	}

	r.applyCamera(vp)
	if vp.Components != nil {
		r.applyComponents(vp.Components)
	}

	if len(vp.ClippingPlanes) > 0 {
		planes := make([]Plane, 0, len(vp.ClippingPlanes))
		for _, cp := range vp.ClippingPlanes {
			direction := r.fromBCF(fromPoint(cp.Direction))
			if opts.ReverseClippingPlanes {
				direction = direction.Scale(-1)
			}
			planes = append(planes, Plane{
				Position:  r.fromBCF(fromPoint(cp.Location)),
				Direction: direction,
			})
		}
		r.scene.SetPlanes(planes)
	}
	return nil
}

func (r *Recorder) applyCamera(vp *Viewpoint) {
	camera := r.scene.Camera()
	switch {
	case vp.PerspectiveCamera != nil:
		pc := vp.PerspectiveCamera
		camera.Eye = r.fromBCF(fromPoint(pc.CameraViewPoint))
		camera.Look = camera.Eye.Add(r.fromBCF(fromPoint(pc.CameraDirection)))
		camera.Up = r.fromBCF(fromPoint(pc.CameraUpVector))
		camera.Projection = ProjectionPerspective
		camera.FOV = pc.FieldOfView
	case vp.OrthogonalCamera != nil:
		oc := vp.OrthogonalCamera
		camera.Eye = r.fromBCF(fromPoint(oc.CameraViewPoint))
		camera.Look = camera.Eye.Add(r.fromBCF(fromPoint(oc.CameraDirection)))
		camera.Up = r.fromBCF(fromPoint(oc.CameraUpVector))
		camera.Projection = ProjectionOrtho
		camera.Scale = oc.ViewToWorldScale
	default:
		return
	}
	r.scene.SetCamera(camera)
}

// applyComponents replays visibility, selection and coloring. View setup
// hints are serialization-only and ignored here.
func (r *Recorder) applyComponents(c *Components) {
	if c.Visibility != nil {
		exceptions := make(map[string]bool, len(c.Visibility.Exceptions))
		for _, comp := range c.Visibility.Exceptions {
			exceptions[comp.IfcGUID] = true
		}
		for _, id := range r.scene.ObjectIDs() {
			r.scene.SetObjectVisible(id, c.Visibility.DefaultVisibility != exceptions[id])
		}
	}
	for _, comp := range c.Selection {
		r.scene.SetObjectSelected(comp.IfcGUID, true)
	}
	for _, coloring := range c.Coloring {
		for _, comp := range coloring.Components {
			r.scene.SetObjectColor(comp.IfcGUID, coloring.Color)
		}
	}
}

// toBCF converts a scene vector into BCF's Z-up frame.
func (r *Recorder) toBCF(v math3d.Vec3) math3d.Vec3 {
	if !r.yUp {
		return v
	}
	return math3d.Vec3{v[0], -v[2], v[1]}
}

// fromBCF converts a BCF vector into the scene frame.
func (r *Recorder) fromBCF(v math3d.Vec3) math3d.Vec3 {
	if !r.yUp {
		return v
	}
	return math3d.Vec3{v[0], v[2], -v[1]}
}

func toPoint(v math3d.Vec3) Point   { return Point{X: v[0], Y: v[1], Z: v[2]} }
func fromPoint(p Point) math3d.Vec3 { return math3d.Vec3{p.X, p.Y, p.Z} }

func toComponents(ids []string) []Component {
	out := make([]Component, len(ids))
	for i, id := range ids {
		out[i] = Component{IfcGUID: id}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
