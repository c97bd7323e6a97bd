// Package scene is the host side of an export: a character rig in
// authoring space (right-handed, Z-up) as the exporter consumes it.
//
// A Scene comes from a YAML description or from a glTF/GLB file. Optional
// host data is modelled as pointer fields with documented defaults, resolved
// through the accessor methods rather than checked at each use.
package scene

import (
	"fmt"
	"path"
	"strings"
)

const (
	DefaultModelName      = "Blenderエクスポート"
	DefaultComment        = "Blnderエクスポート\n"
	DefaultEnglishComment = "blender export\n"
)

// Scene is everything one export needs.
type Scene struct {
	// Name is the object display name. It becomes the english model name.
	Name           string `yaml:"name"`
	ModelName      string `yaml:"model_name,omitempty"`
	Comment        string `yaml:"comment,omitempty"`
	EnglishComment string `yaml:"english_comment,omitempty"`

	// Vertices are already split by normal and UV, one entry per
	// distinct vertex.
	Vertices   []Vertex    `yaml:"vertices"`
	FaceGroups []FaceGroup `yaml:"face_groups"`
	Materials  []Material  `yaml:"materials,omitempty"`

	Bones      []Bone   `yaml:"bones"`
	IKs        []IK     `yaml:"iks,omitempty"`
	BoneGroups []string `yaml:"bone_groups,omitempty"`

	Morphs []Morph `yaml:"morphs,omitempty"`

	RigidBodies []RigidBody `yaml:"rigid_bodies,omitempty"`
	Joints      []Joint     `yaml:"joints,omitempty"`

	Toon *Toon `yaml:"toon,omitempty"`
}

type Vertex struct {
	Pos    [3]float32 `yaml:"pos"`
	Normal [3]float32 `yaml:"normal"`
	UV     [2]float32 `yaml:"uv"`
	// Bone0 and Bone1 are bone names. An empty name is no influence.
	Bone0 string `yaml:"bone0"`
	Bone1 string `yaml:"bone1,omitempty"`
	// Weight of Bone0.
	Weight float32 `yaml:"weight"`
	NoEdge bool    `yaml:"no_edge,omitempty"`
}

// FaceGroup is a flat triangle index list drawn with one material.
type FaceGroup struct {
	Material string `yaml:"material"`
	Indices  []int  `yaml:"indices"`
}

// Material holds host material properties. Unset fields take the defaults
// returned by the OrDefault accessors.
type Material struct {
	Name             string      `yaml:"name"`
	Diffuse          *[3]float32 `yaml:"diffuse,omitempty"`
	Alpha            *float32    `yaml:"alpha,omitempty"`
	Specular         *[3]float32 `yaml:"specular,omitempty"`
	Hardness         *float32    `yaml:"hardness,omitempty"`
	SpecularToonSize *float32    `yaml:"specular_toon_size,omitempty"`
	Ambient          *[3]float32 `yaml:"ambient,omitempty"`
	Edge             bool        `yaml:"edge,omitempty"`
	// Textures are image paths. Only the base names are exported.
	Textures []string `yaml:"textures,omitempty"`
}

func (m *Material) DiffuseOrDefault() [3]float32 {
	if m.Diffuse == nil {
		return [3]float32{0.5, 0.5, 0.5}
	}
	return *m.Diffuse
}

func (m *Material) AlphaOrDefault() float32 {
	if m.Alpha == nil {
		return 1
	}
	return *m.Alpha
}

func (m *Material) SpecularOrDefault() [3]float32 {
	if m.Specular == nil {
		return [3]float32{}
	}
	return *m.Specular
}

func (m *Material) HardnessOrDefault() float32 {
	if m.Hardness == nil {
		return 0
	}
	return *m.Hardness
}

func (m *Material) SpecularToonSizeOrDefault() float32 {
	if m.SpecularToonSize == nil {
		return 0
	}
	return *m.SpecularToonSize
}

func (m *Material) AmbientOrDefault() [3]float32 {
	if m.Ambient == nil {
		return [3]float32{}
	}
	return *m.Ambient
}

// TextureNames returns the texture base names, with directories in either
// separator style removed.
func (m *Material) TextureNames() []string {
	var names []string
	for _, t := range m.Textures {
		t = path.Base(strings.ReplaceAll(t, "\\", "/"))
		if t != "." && t != "/" {
			names = append(names, t)
		}
	}
	return names
}

// Bone indexes refer to Scene.Bones. -1 means none.
type Bone struct {
	Name     string     `yaml:"name"`
	Parent   int        `yaml:"parent"`
	Tail     int        `yaml:"tail"`
	Type     int        `yaml:"type"`
	IKTarget int        `yaml:"ik_target"`
	Pos      [3]float32 `yaml:"pos"`
	// Group names an entry of Scene.BoneGroups. Empty means ungrouped.
	Group string `yaml:"group,omitempty"`
}

// UnmarshalYAML defaults the index fields to -1.
func (b *Bone) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Bone
	p := plain{Parent: -1, Tail: -1, IKTarget: -1}
	if err := unmarshal(&p); err != nil {
		return err
	}
	*b = Bone(p)
	return nil
}

// IK names the controlling bone and the effector. The chain is the Length
// bones above the effector.
type IK struct {
	Target     string  `yaml:"target"`
	Effector   string  `yaml:"effector"`
	Length     int     `yaml:"length"`
	Iterations int     `yaml:"iterations"`
	Weight     float32 `yaml:"weight"`
}

type Morph struct {
	Name    string   `yaml:"name"`
	Offsets []Offset `yaml:"offsets"`
}

type Offset struct {
	Vertex int        `yaml:"vertex"`
	Offset [3]float32 `yaml:"offset"`
}

// RigidBody is a physics proxy object. Location and Rotation are its world
// transform; Scale carries the shape size.
type RigidBody struct {
	Name           string     `yaml:"name"`
	Bone           string     `yaml:"bone"`
	Shape          int        `yaml:"shape"`
	Scale          [3]float32 `yaml:"scale"`
	Location       [3]float32 `yaml:"location"`
	Rotation       [3]float32 `yaml:"rotation"`
	Group          uint8      `yaml:"group"`
	Mask           uint16     `yaml:"mask"`
	Mass           float32    `yaml:"mass"`
	LinearDamping  float32    `yaml:"linear_damping"`
	AngularDamping float32    `yaml:"angular_damping"`
	Restitution    float32    `yaml:"restitution"`
	Friction       float32    `yaml:"friction"`
	Mode           int        `yaml:"mode"`
}

// Joint constrains the rigid bodies named A and B.
type Joint struct {
	Name       string     `yaml:"name"`
	A          string     `yaml:"a"`
	B          string     `yaml:"b"`
	Location   [3]float32 `yaml:"location"`
	Rotation   [3]float32 `yaml:"rotation"`
	MoveMin    [3]float32 `yaml:"move_min"`
	MoveMax    [3]float32 `yaml:"move_max"`
	RotMin     [3]float32 `yaml:"rot_min"`
	RotMax     [3]float32 `yaml:"rot_max"`
	SpringMove [3]float32 `yaml:"spring_move"`
	SpringRot  [3]float32 `yaml:"spring_rot"`
}

// Toon lists custom toon textures by slot. Empty or missing entries keep
// the default name; entries past the tenth are ignored.
type Toon struct {
	Textures []string `yaml:"textures"`
}

// Metadata returns the model name and comments, with defaults for unset
// values.
func (s *Scene) Metadata() (name, comment, englishComment string) {
	name, comment, englishComment = s.ModelName, s.Comment, s.EnglishComment
	if name == "" {
		name = DefaultModelName
	}
	if comment == "" {
		comment = DefaultComment
	}
	if englishComment == "" {
		englishComment = DefaultEnglishComment
	}
	return
}

// FindMaterial returns the first material named name.
func (s *Scene) FindMaterial(name string) (Material, bool) {
	for _, m := range s.Materials {
		if m.Name == name {
			return m, true
		}
	}
	return Material{}, false
}

// FindToon returns the custom toon texture set, if the scene has one.
func (s *Scene) FindToon() (*Toon, bool) {
	return s.Toon, s.Toon != nil
}

// BoneGroupIndex returns the index of the named bone group, or -1.
func (s *Scene) BoneGroupIndex(name string) int {
	for i, g := range s.BoneGroups {
		if g == name {
			return i
		}
	}
	return -1
}

// Check reports missing required keys. Loaders call it; it is a caller
// error, separate from the exporter's own validation.
func (s *Scene) Check() error {
	for i, b := range s.Bones {
		if b.Name == "" {
			return fmt.Errorf("bone %d: missing name", i)
		}
		if b.Group != "" && s.BoneGroupIndex(b.Group) < 0 {
			return fmt.Errorf("bone %q: unknown group %q", b.Name, b.Group)
		}
	}
	for i, m := range s.Morphs {
		if m.Name == "" {
			return fmt.Errorf("morph %d: missing name", i)
		}
	}
	for i, r := range s.RigidBodies {
		if r.Name == "" || r.Bone == "" {
			return fmt.Errorf("rigid body %d: missing name or bone", i)
		}
	}
	for i, j := range s.Joints {
		if j.A == "" || j.B == "" {
			return fmt.Errorf("joint %d: missing rigid body names", i)
		}
	}
	return nil
}
