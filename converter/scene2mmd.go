package converter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/localize"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
	"github.com/DangDinhQuocTrung/pymeshio/scene"
)

type SceneToMMDOption struct {
	// Localization defaults to localize.Default().
	Localization *localize.Table
	// EyesBoneName is the bone eye-linked bones follow. Defaults to "eyes".
	EyesBoneName string
	Logger       *zap.Logger
}

type SceneToMMDConverter struct {
	options *SceneToMMDOption
}

type sceneToMMDState struct {
	SceneToMMDOption
	src *scene.Scene
	dst *mmd.Model

	boneIndex  map[string]int
	rigidIndex map[string]int
}

func NewSceneToMMDConverter(options *SceneToMMDOption) *SceneToMMDConverter {
	if options == nil {
		options = &SceneToMMDOption{}
	}
	if options.Localization == nil {
		options.Localization = localize.Default()
	}
	if options.EyesBoneName == "" {
		options.EyesBoneName = "eyes"
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &SceneToMMDConverter{options: options}
}

// Convert builds a validated model from src. src is not modified.
func (conv *SceneToMMDConverter) Convert(src *scene.Scene) (*mmd.Model, error) {
	state := sceneToMMDState{
		SceneToMMDOption: *conv.options,
		src:              src,
		dst:              mmd.NewModel(),
		boneIndex:        map[string]int{},
		rigidIndex:       map[string]int{},
	}
	state.Logger = state.Logger.With(zap.String("object", src.Name))

	dst := state.dst
	dst.Name, dst.Comment, dst.CommentEn = src.Metadata()
	dst.NameEn = src.Name

	steps := []struct {
		name string
		fn   func() error
	}{
		{"bones", state.convertBones},
		{"vertices", state.convertVertices},
		{"faces", state.convertFaces},
		{"ik", state.convertIKs},
		{"morphs", state.convertMorphs},
		{"bone groups", state.convertBoneGroups},
		{"rigid bodies", state.convertRigidBodies},
		{"joints", state.convertJoints},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	state.convertToon()

	if err := dst.Validate(); err != nil {
		return nil, err
	}
	state.Logger.Info("converted",
		zap.Int("vertices", len(dst.Vertexes)),
		zap.Int("faces", len(dst.Faces)),
		zap.Int("bones", len(dst.Bones)),
		zap.Int("morphs", len(dst.Morphs)),
		zap.Int("rigid_bodies", len(dst.RigidBodies)))
	return dst, nil
}

// Convert runs a converter with the given options once.
func Convert(src *scene.Scene, options *SceneToMMDOption) (*mmd.Model, error) {
	return NewSceneToMMDConverter(options).Convert(src)
}

func (c *sceneToMMDState) convertToon() {
	toon, ok := c.src.FindToon()
	if !ok {
		return
	}
	for i, t := range toon.Textures {
		if i >= mmd.ToonSlots {
			break
		}
		m := scene.Material{Textures: []string{t}}
		if names := m.TextureNames(); len(names) > 0 {
			c.dst.ToonTextures[i] = names[0]
		}
	}
}
