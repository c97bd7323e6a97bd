package converter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/geom"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
	"github.com/DangDinhQuocTrung/pymeshio/scene"
)

// DefaultMaterial stands in for a face group whose material is missing.
var DefaultMaterial = scene.Material{Name: "default"}

func convertVec3(v [3]float32) mmd.Vector3 {
	return geom.ToTargetSpace(mmd.Vector3{X: v[0], Y: v[1], Z: v[2]})
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (c *sceneToMMDState) vertexBone(name string) (int, error) {
	if name == "" {
		return mmd.NoBone, nil
	}
	i, ok := c.boneIndex[name]
	if !ok {
		return 0, mmd.ReferenceError{Kind: "vertex bone", Name: name}
	}
	return i, nil
}

func (c *sceneToMMDState) convertVertices() error {
	for i, v := range c.src.Vertices {
		b0, err := c.vertexBone(v.Bone0)
		if err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
		b1, err := c.vertexBone(v.Bone1)
		if err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
		c.dst.Vertexes = append(c.dst.Vertexes, &mmd.Vertex{
			Pos:    convertVec3(v.Pos),
			Normal: convertVec3(v.Normal),
			UV:     mmd.Vector2{X: v.UV[0], Y: 1 - v.UV[1]},
			Bones:  [2]int{b0, b1},
			Weight: clamp01(v.Weight),
			NoEdge: v.NoEdge,
		})
	}
	return nil
}

func (c *sceneToMMDState) convertFaces() error {
	nv := len(c.dst.Vertexes)
	for _, g := range c.src.FaceGroups {
		if len(g.Indices)%3 != 0 {
			return fmt.Errorf("material %q: %d indices leave a truncated triangle: %w", g.Material, len(g.Indices), mmd.ErrIndexOutOfRange)
		}
		for _, i := range g.Indices {
			if i < 0 || i >= nv {
				return fmt.Errorf("material %q: %w", g.Material, mmd.IndexError{Kind: "face vertex", Index: i, Len: nv})
			}
		}
		c.dst.Materials = append(c.dst.Materials, c.convertMaterial(g))
		for i := 0; i < len(g.Indices); i += 3 {
			c.dst.Faces = append(c.dst.Faces, &mmd.Face{Verts: [3]int{g.Indices[i], g.Indices[i+1], g.Indices[i+2]}})
		}
	}
	return nil
}

func (c *sceneToMMDState) convertMaterial(g scene.FaceGroup) *mmd.Material {
	m, ok := c.src.FindMaterial(g.Material)
	if !ok {
		c.Logger.Warn("material not found, using default", zap.String("material", g.Material))
		m = DefaultMaterial
	}
	diffuse, specular, ambient := m.DiffuseOrDefault(), m.SpecularOrDefault(), m.AmbientOrDefault()
	var specularity float32
	if m.SpecularToonSizeOrDefault() >= 1e-5 {
		specularity = m.HardnessOrDefault() * 10
	}
	var flags uint8
	if m.Edge {
		flags |= mmd.MaterialFlagEdge
	}
	return &mmd.Material{
		Name:        g.Material,
		Diffuse:     mmd.Vector3{X: diffuse[0], Y: diffuse[1], Z: diffuse[2]},
		Alpha:       m.AlphaOrDefault(),
		Specularity: specularity,
		Specular:    mmd.Vector3{X: specular[0], Y: specular[1], Z: specular[2]},
		Ambient:     mmd.Vector3{X: ambient[0], Y: ambient[1], Z: ambient[2]},
		Flags:       flags,
		Toon:        0,
		Count:       len(g.Indices),
		Texture:     strings.Join(m.TextureNames(), "*"),
	}
}
