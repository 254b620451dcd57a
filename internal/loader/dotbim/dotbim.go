// Package dotbim loads the dotbim (.bim) JSON interchange format: a flat
// list of indexed meshes plus elements that instance them with a placement,
// a color and free-form info properties.
// Reference: https://github.com/paireks/dotbim
package dotbim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/math3d"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
)

type file struct {
	SchemaVersion string            `json:"schema_version"`
	Meshes        []fileMesh        `json:"meshes"`
	Elements      []fileElement     `json:"elements"`
	Info          map[string]string `json:"info,omitempty"`
}

type fileMesh struct {
	MeshID      int       `json:"mesh_id"`
	Coordinates []float64 `json:"coordinates"`
	Indices     []uint32  `json:"indices"`
}

type fileElement struct {
	MeshID     int               `json:"mesh_id"`
	Vector     vector            `json:"vector"`
	Rotation   rotation          `json:"rotation"`
	GUID       string            `json:"guid"`
	Type       string            `json:"type"`
	Color      *color            `json:"color,omitempty"`
	FaceColors []int             `json:"face_colors,omitempty"`
	Info       map[string]string `json:"info,omitempty"`
}

type vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type rotation struct {
	QX float64 `json:"qx"`
	QY float64 `json:"qy"`
	QZ float64 `json:"qz"`
	QW float64 `json:"qw"`
}

type color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	A int `json:"a"`
}

// Loader decodes .bim files.
type Loader struct {
	log *slog.Logger
}

// New creates a dotbim loader.
func New(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log}
}

// Name implements loader.Loader.
func (l *Loader) Name() string { return "dotbim" }

// CanLoad implements loader.Loader.
func (l *Loader) CanLoad(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".bim")
}

// Load implements loader.Loader.
func (l *Loader) Load(ctx context.Context, p loader.Params) (*loader.Result, error) {
	start := time.Now()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("dotbim: error parsing file: %w", err)
	}
	if f.SchemaVersion != "" && !strings.HasPrefix(f.SchemaVersion, "1.") {
		return nil, fmt.Errorf("dotbim: unsupported schema version %q", f.SchemaVersion)
	}

	modelID := p.ModelID
	if modelID == "" && p.Path != "" {
		modelID = strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
	}
	if modelID == "" {
		modelID = "dotbim-model"
	}

	metaModel, err := l.metadata(&f, p.Meta, modelID)
	if err != nil {
		return nil, err
	}

	model := scene.NewModel(modelID, l.log)
	model.Source = p.Path
	model.Origin = p.Georeference
	if err := l.populate(&f, model, metaModel, p); err != nil {
		return nil, err
	}
	model.Finalize()

	l.log.Info("Loaded dotbim model",
		"model", modelID,
		"bytes", len(data),
		"elements", len(f.Elements),
		"entities", model.Stats().Entities)

	return &loader.Result{
		Scene: model,
		Meta:  metaModel,
		Stats: loader.Stats{
			Format:      l.Name(),
			SourceBytes: len(data),
			Duration:    time.Since(start),
			Scene:       model.Stats(),
			MetaObjects: metaModel.ObjectCount(),
		},
	}, nil
}

// metadata builds the metadata model: explicit Params.Meta wins, otherwise
// one flat object per element from its guid, type and info properties.
func (l *Loader) metadata(f *file, explicit []byte, modelID string) (*meta.Model, error) {
	if len(explicit) > 0 {
		m, err := meta.ParseModel(explicit)
		if err != nil {
			return nil, fmt.Errorf("dotbim: metadata: %w", err)
		}
		return m, nil
	}

	doc := struct {
		ID          string        `json:"id"`
		MetaObjects []meta.Object `json:"metaObjects"`
	}{ID: modelID}
	for i, e := range f.Elements {
		id := e.GUID
		if id == "" {
			id = fmt.Sprintf("element-%d", i)
		}
		objType := e.Type
		if objType == "" {
			objType = meta.TypeDefault
		}
		doc.MetaObjects = append(doc.MetaObjects, meta.Object{
			ID:   id,
			Name: e.Info["Name"],
			Type: objType,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("dotbim: metadata: %w", err)
	}
	m, err := meta.ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("dotbim: metadata: %w", err)
	}
	return m, nil
}

func (l *Loader) populate(f *file, model *scene.Model, metaModel *meta.Model, p loader.Params) error {
	pass := p.TypeFilter()

	// Shared geometries, one per mesh_id. Elements with face colors get a
	// private de-indexed copy carrying per-vertex colors.
	meshByID := make(map[int]*fileMesh, len(f.Meshes))
	geomByID := make(map[int]string, len(f.Meshes))
	for i := range f.Meshes {
		m := &f.Meshes[i]
		if len(m.Coordinates)%3 != 0 {
			return fmt.Errorf("dotbim: mesh %d coordinates length %d not divisible by 3", m.MeshID, len(m.Coordinates))
		}
		meshByID[m.MeshID] = m
	}

	for i, e := range f.Elements {
		entityID := e.GUID
		if entityID == "" {
			entityID = fmt.Sprintf("element-%d", i)
		}
		objType := meta.TypeDefault
		if obj, ok := metaModel.Object(entityID); ok {
			objType = obj.Type
		}
		if !pass(objType) {
			continue
		}

		src, ok := meshByID[e.MeshID]
		if !ok {
			return fmt.Errorf("dotbim: element %q references mesh %d", entityID, e.MeshID)
		}

		var geomID string
		var err error
		if len(e.FaceColors) > 0 {
			geomID = fmt.Sprintf("geometry-%d-faces-%d", e.MeshID, i)
			err = createFaceColoredGeometry(model, geomID, src, e.FaceColors)
		} else {
			geomID, ok = geomByID[e.MeshID]
			if !ok {
				geomID = fmt.Sprintf("geometry-%d", e.MeshID)
				err = model.CreateGeometry(scene.GeometryParams{
					ID:        geomID,
					Primitive: scene.PrimitiveTriangles,
					Positions: src.Coordinates,
					Indices:   src.Indices,
				})
				if err == nil {
					geomByID[e.MeshID] = geomID
				}
			}
		}
		if err != nil {
			return fmt.Errorf("dotbim: %w", err)
		}

		matrix := math3d.Compose(
			math3d.Vec3{e.Vector.X, e.Vector.Y, e.Vector.Z},
			[4]float64{e.Rotation.QX, e.Rotation.QY, e.Rotation.QZ, e.Rotation.QW},
			math3d.Vec3{1, 1, 1},
		)
		var matrixP *math3d.Mat4
		if !matrix.IsIdentity() {
			matrixP = &matrix
		}

		meshColor, opacity := elementColor(e.Color, p.Defaults)
		meshID := entityID + "-mesh-0"
		err = model.CreateMesh(scene.MeshParams{
			ID:         meshID,
			GeometryID: geomID,
			Matrix:     matrixP,
			Color:      meshColor,
			Opacity:    opacity,
		})
		if err != nil {
			return fmt.Errorf("dotbim: %w", err)
		}
		err = model.CreateEntity(scene.EntityParams{
			ID:       entityID,
			MeshIDs:  []string{meshID},
			IsObject: true,
		})
		if err != nil {
			return fmt.Errorf("dotbim: %w", err)
		}
	}
	return nil
}

// createFaceColoredGeometry de-indexes the mesh so every face's RGBA can be
// written to its three vertices. face_colors holds four ints per face.
func createFaceColoredGeometry(model *scene.Model, id string, src *fileMesh, faceColors []int) error {
	faces := len(src.Indices) / 3
	if len(faceColors) != faces*4 {
		return fmt.Errorf("mesh %d has %d face color values for %d faces", src.MeshID, len(faceColors), faces)
	}

	positions := make([]float64, 0, len(src.Indices)*3)
	colors := make([]float32, 0, len(src.Indices)*4)
	indices := make([]uint32, len(src.Indices))
	for face := 0; face < faces; face++ {
		r := float32(faceColors[face*4]) / 255
		g := float32(faceColors[face*4+1]) / 255
		b := float32(faceColors[face*4+2]) / 255
		a := float32(faceColors[face*4+3]) / 255
		for corner := 0; corner < 3; corner++ {
			v := int(src.Indices[face*3+corner])
			if v*3+2 >= len(src.Coordinates) {
				return fmt.Errorf("mesh %d index %d out of range", src.MeshID, v)
			}
			positions = append(positions, src.Coordinates[v*3], src.Coordinates[v*3+1], src.Coordinates[v*3+2])
			colors = append(colors, r, g, b, a)
			indices[face*3+corner] = uint32(face*3 + corner)
		}
	}

	return model.CreateGeometry(scene.GeometryParams{
		ID:        id,
		Primitive: scene.PrimitiveTriangles,
		Positions: positions,
		Colors:    colors,
		Indices:   indices,
	})
}

func elementColor(c *color, defaults loader.ObjectDefaults) ([3]float32, float32) {
	if c != nil {
		return [3]float32{
			float32(c.R) / 255,
			float32(c.G) / 255,
			float32(c.B) / 255,
		}, float32(c.A) / 255
	}
	rgb := defaults.Color
	opacity := defaults.Opacity
	if rgb == [3]float32{} {
		rgb = [3]float32{1, 1, 1}
	}
	if opacity == 0 {
		opacity = 1
	}
	return rgb, opacity
}
