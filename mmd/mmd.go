// Package mmd holds the in-memory MikuMikuDance model and reads and writes
// it as .pmd (legacy) and .pmx (2.0) files, plus .vpd pose files.
//
// All coordinates are in MMD space: left-handed, Y-up.
package mmd

import (
	"fmt"

	"github.com/DangDinhQuocTrung/pymeshio/geom"
)

type Vector2 = geom.Vector2
type Vector3 = geom.Vector3
type Vector4 = geom.Vector4

// NoBone marks an unused skinning slot or a missing bone reference.
const NoBone = -1

// ToonSlots is the number of toon texture slots of a model.
const ToonSlots = 10

// Model is the format-agnostic aggregate built for one export.
type Model struct {
	Name      string
	NameEn    string
	Comment   string
	CommentEn string

	Vertexes  []*Vertex
	Faces     []*Face
	Materials []*Material
	Bones     []*Bone
	IKs       []*IK

	// Morphs[0] is the base morph whenever there are morphs.
	Morphs []*Morph
	// MorphOrder lists indexes into Morphs in display order.
	MorphOrder []int

	BoneGroups  []*BoneGroup
	BoneDisplay []BoneDisplay

	ToonTextures [ToonSlots]string

	RigidBodies []*RigidBody
	Joints      []*Joint
}

// NewModel returns an empty model with the default toon textures.
func NewModel() *Model {
	m := &Model{}
	for i := range m.ToonTextures {
		m.ToonTextures[i] = DefaultToonTexture(i)
	}
	return m
}

// DefaultToonTexture returns the name MMD ships for toon slot i (0-based).
func DefaultToonTexture(i int) string {
	return fmt.Sprintf("toon%02d.bmp", i+1)
}

type Vertex struct {
	Pos    Vector3
	Normal Vector3
	UV     Vector2

	// Bones[1] is NoBone for single bone skinning.
	Bones [2]int
	// Weight of Bones[0]. Bones[1] gets 1-Weight.
	Weight float32
	NoEdge bool
}

type Face struct {
	Verts [3]int
}

type Material struct {
	Name        string
	Diffuse     Vector3
	Alpha       float32
	Specularity float32
	Specular    Vector3
	Ambient     Vector3
	Flags       uint8
	// Toon is an index into ToonTextures, or -1.
	Toon int
	// Count is the number of face indices (3 per triangle).
	Count int
	// Texture holds one or more file names joined by "*".
	Texture string
}

const (
	MaterialFlagEdge uint8 = 1
)

type BoneType uint8

const (
	BoneRotate      BoneType = 0
	BoneRotateMove  BoneType = 1
	BoneIK          BoneType = 2
	BoneUnknown     BoneType = 3
	BoneIKLink      BoneType = 4
	BoneRotateLink  BoneType = 5
	BoneIKTip       BoneType = 6
	BoneInvisible   BoneType = 7
	BoneTwist       BoneType = 8
	BoneRotateRatio BoneType = 9
)

func (t BoneType) Valid() bool {
	return t <= BoneRotateRatio
}

type Bone struct {
	Name     string
	NameEn   string
	Parent   int
	Tail     int
	Type     BoneType
	IKTarget int
	Pos      Vector3
}

// IK is a solver. Bone is the controlling bone, Target the end effector.
// Links run from the effector's parent towards the root.
type IK struct {
	Bone       int
	Target     int
	Links      []int
	Iterations int
	Weight     float32
}

type MorphCategory uint8

const (
	MorphBase    MorphCategory = 0
	MorphEyebrow MorphCategory = 1
	MorphEye     MorphCategory = 2
	MorphLip     MorphCategory = 3
	MorphOther   MorphCategory = 4
)

// DisplayCategories is the order morph panels are listed in.
var DisplayCategories = [...]MorphCategory{MorphEyebrow, MorphEye, MorphLip, MorphOther}

type MorphOffset struct {
	Vertex int
	Offset Vector3
}

type Morph struct {
	Name     string
	NameEn   string
	Category MorphCategory
	Offsets  []MorphOffset
}

type BoneGroup struct {
	Name   string
	NameEn string
}

// BoneDisplay places a bone in a bone group. Group is 0-based.
type BoneDisplay struct {
	Bone  int
	Group int
}

type ShapeKind uint8

const (
	ShapeSphere  ShapeKind = 0
	ShapeBox     ShapeKind = 1
	ShapeCapsule ShapeKind = 2
)

// Shape is one of Sphere, Box or Capsule.
type Shape interface {
	Kind() ShapeKind
	// Size packs the shape parameters the way both file formats store them.
	Size() Vector3
	shape()
}

type Sphere struct {
	Radius float32
}

type Box struct {
	Width  float32
	Height float32
	Depth  float32
}

type Capsule struct {
	Radius float32
	Height float32
}

func (Sphere) Kind() ShapeKind  { return ShapeSphere }
func (Box) Kind() ShapeKind     { return ShapeBox }
func (Capsule) Kind() ShapeKind { return ShapeCapsule }

func (s Sphere) Size() Vector3  { return Vector3{X: s.Radius} }
func (s Box) Size() Vector3     { return Vector3{X: s.Width, Y: s.Height, Z: s.Depth} }
func (s Capsule) Size() Vector3 { return Vector3{X: s.Radius, Y: s.Height} }

func (Sphere) shape()  {}
func (Box) shape()     {}
func (Capsule) shape() {}

// NewShape unpacks a stored shape.
func NewShape(kind ShapeKind, size Vector3) (Shape, error) {
	switch kind {
	case ShapeSphere:
		return Sphere{Radius: size.X}, nil
	case ShapeBox:
		return Box{Width: size.X, Height: size.Y, Depth: size.Z}, nil
	case ShapeCapsule:
		return Capsule{Radius: size.X, Height: size.Y}, nil
	}
	return nil, fmt.Errorf("unknown rigid body shape %d", kind)
}

type RigidMode uint8

const (
	RigidBone           RigidMode = 0
	RigidPhysics        RigidMode = 1
	RigidPhysicsAligned RigidMode = 2
)

// RigidBody is a physics proxy. Pos and Rot are relative to the owning bone,
// or to bone 0 when Bone is NoBone.
type RigidBody struct {
	Name           string
	Bone           int
	Group          uint8
	Mask           uint16
	Shape          Shape
	Pos            Vector3
	Rot            Vector3
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32
	Mode           RigidMode
}

// Joint connects rigid bodies A and B. Pos and Rot are in model space.
type Joint struct {
	Name       string
	A          int
	B          int
	Pos        Vector3
	Rot        Vector3
	MoveMin    Vector3
	MoveMax    Vector3
	RotMin     Vector3
	RotMax     Vector3
	SpringMove Vector3
	SpringRot  Vector3
}

// BoneIndex returns the index of the bone named name, or -1.
func (m *Model) BoneIndex(name string) int {
	for i, b := range m.Bones {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// HasBaseMorph reports whether Morphs starts with the base morph.
func (m *Model) HasBaseMorph() bool {
	return len(m.Morphs) > 0 && m.Morphs[0].Category == MorphBase
}
