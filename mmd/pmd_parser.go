package mmd

import (
	"fmt"
	"io"
	"strings"
)

// PMDParser reads the legacy .pmd layout.
type PMDParser struct {
	*baseParser
}

func NewPMDParser(r io.Reader) *PMDParser {
	return &PMDParser{baseParser: newBaseParser(r)}
}

// ReadPMD reads a .pmd model. Trailing sections that older files omit are
// left empty.
func ReadPMD(r io.Reader) (*Model, error) {
	p := NewPMDParser(r)
	m := p.Parse()
	if err := p.end(); err != nil {
		return nil, err
	}
	return m, nil
}

// ref16 reads a bone reference where 0 means none.
func (p *PMDParser) ref16() int {
	v := int(p.u16())
	if v == 0 {
		return NoBone
	}
	return v
}

func (p *PMDParser) readVertex() *Vertex {
	var v Vertex
	v.Pos = p.vec3()
	v.Normal = p.vec3()
	v.UV = p.vec2()
	v.Bones = [2]int{int(p.u16()), int(p.u16())}
	v.Weight = float32(p.u8()) / 100
	v.NoEdge = p.u8() != 0
	return &v
}

func (p *PMDParser) readMaterial(i int) *Material {
	var m Material
	m.Diffuse = p.vec3()
	m.Alpha = p.f32()
	m.Specularity = p.f32()
	m.Specular = p.vec3()
	m.Ambient = p.vec3()
	m.Toon = int(p.u8())
	if m.Toon == 0xFF {
		m.Toon = -1
	}
	m.Flags = p.u8()
	m.Count = int(p.u32())
	m.Texture = p.fixed(20)
	m.Name = fmt.Sprintf("mat%d", i+1)
	return &m
}

func (p *PMDParser) readBone() *Bone {
	var b Bone
	b.Name = p.fixed(20)
	b.Parent = p.boneRef16()
	b.Tail = p.ref16()
	b.Type = BoneType(p.u8())
	b.IKTarget = p.ref16()
	b.Pos = p.vec3()
	return &b
}

func (p *PMDParser) readMorph() *Morph {
	var m Morph
	m.Name = p.fixed(20)
	n := p.count(int64(p.u32()))
	m.Category = MorphCategory(p.u8())
	m.Offsets = make([]MorphOffset, 0, capacity(n))
	for i := 0; i < n && !p.failed; i++ {
		m.Offsets = append(m.Offsets, MorphOffset{Vertex: int(p.u32()), Offset: p.vec3()})
	}
	return &m
}

func (p *PMDParser) readRigidBody() *RigidBody {
	var r RigidBody
	r.Name = p.fixed(20)
	r.Bone = p.boneRef16()
	r.Group = p.u8()
	r.Mask = p.u16()
	kind := ShapeKind(p.u8())
	size := p.vec3()
	shape, err := NewShape(kind, size)
	if err != nil {
		p.fail(err)
	}
	r.Shape = shape
	r.Pos = p.vec3()
	r.Rot = p.vec3()
	r.Mass = p.f32()
	r.LinearDamping = p.f32()
	r.AngularDamping = p.f32()
	r.Restitution = p.f32()
	r.Friction = p.f32()
	r.Mode = RigidMode(p.u8())
	return &r
}

func (p *PMDParser) readJoint() *Joint {
	var j Joint
	j.Name = p.fixed(20)
	j.A = int(p.u32())
	j.B = int(p.u32())
	j.Pos = p.vec3()
	j.Rot = p.vec3()
	j.MoveMin = p.vec3()
	j.MoveMax = p.vec3()
	j.RotMin = p.vec3()
	j.RotMax = p.vec3()
	j.SpringMove = p.vec3()
	j.SpringRot = p.vec3()
	return &j
}

// Parse reads the whole file. Errors are reported by end.
func (p *PMDParser) Parse() *Model {
	m := NewModel()

	p.magic("Pmd")
	p.f32()
	m.Name = p.fixed(20)
	m.Comment = p.fixed(256)

	n := p.count(int64(p.u32()))
	m.Vertexes = make([]*Vertex, 0, capacity(n))
	for i := 0; i < n && !p.failed; i++ {
		m.Vertexes = append(m.Vertexes, p.readVertex())
	}

	n = p.count(int64(p.u32())) / 3
	m.Faces = make([]*Face, 0, capacity(n))
	for i := 0; i < n && !p.failed; i++ {
		m.Faces = append(m.Faces, &Face{Verts: [3]int{int(p.u16()), int(p.u16()), int(p.u16())}})
	}

	n = p.count(int64(p.u32()))
	for i := 0; i < n && !p.failed; i++ {
		m.Materials = append(m.Materials, p.readMaterial(i))
	}

	n = int(p.u16())
	for i := 0; i < n && !p.failed; i++ {
		m.Bones = append(m.Bones, p.readBone())
	}

	n = int(p.u16())
	for i := 0; i < n && !p.failed; i++ {
		ik := &IK{Bone: int(p.u16()), Target: int(p.u16())}
		links := int(p.u8())
		ik.Iterations = int(p.u16())
		ik.Weight = p.f32()
		for j := 0; j < links && !p.failed; j++ {
			ik.Links = append(ik.Links, int(p.u16()))
		}
		m.IKs = append(m.IKs, ik)
	}

	n = int(p.u16())
	for i := 0; i < n && !p.failed; i++ {
		m.Morphs = append(m.Morphs, p.readMorph())
	}
	p.resolveMorphs(m)

	n = int(p.u8())
	for i := 0; i < n && !p.failed; i++ {
		m.MorphOrder = append(m.MorphOrder, int(p.u16()))
	}

	n = int(p.u8())
	for i := 0; i < n && !p.failed; i++ {
		m.BoneGroups = append(m.BoneGroups, &BoneGroup{Name: strings.TrimSuffix(p.fixed(50), "\n")})
	}

	n = p.count(int64(p.u32()))
	for i := 0; i < n && !p.failed; i++ {
		bone := int(p.u16())
		m.BoneDisplay = append(m.BoneDisplay, BoneDisplay{Bone: bone, Group: int(p.u8()) - 1})
	}

	if !p.more() {
		return m
	}
	if p.u8() != 0 {
		m.NameEn = p.fixed(20)
		m.CommentEn = p.fixed(256)
		for _, b := range m.Bones {
			b.NameEn = p.fixed(20)
		}
		for i, morph := range m.Morphs {
			if i == 0 && m.HasBaseMorph() {
				continue
			}
			morph.NameEn = p.fixed(20)
		}
		for _, g := range m.BoneGroups {
			g.NameEn = strings.TrimSuffix(p.fixed(50), "\n")
		}
	}

	if !p.more() {
		return m
	}
	for i := range m.ToonTextures {
		m.ToonTextures[i] = p.fixed(100)
	}

	if !p.more() {
		return m
	}
	n = p.count(int64(p.u32()))
	for i := 0; i < n && !p.failed; i++ {
		m.RigidBodies = append(m.RigidBodies, p.readRigidBody())
	}
	n = p.count(int64(p.u32()))
	for i := 0; i < n && !p.failed; i++ {
		m.Joints = append(m.Joints, p.readJoint())
	}
	return m
}

// resolveMorphs turns the absolute base positions into zero offsets and
// maps the other morphs from base list positions to vertex indexes.
func (p *PMDParser) resolveMorphs(m *Model) {
	if p.failed || !m.HasBaseMorph() {
		return
	}
	base := m.Morphs[0]
	for i := range base.Offsets {
		o := &base.Offsets[i]
		if o.Vertex < 0 || o.Vertex >= len(m.Vertexes) {
			p.fail(IndexError{Kind: "base morph vertex", Index: o.Vertex, Len: len(m.Vertexes)})
			return
		}
		o.Offset = *o.Offset.Sub(&m.Vertexes[o.Vertex].Pos)
	}
	for _, morph := range m.Morphs[1:] {
		for i := range morph.Offsets {
			o := &morph.Offsets[i]
			if o.Vertex < 0 || o.Vertex >= len(base.Offsets) {
				p.fail(IndexError{Kind: "morph base index", Index: o.Vertex, Len: len(base.Offsets)})
				return
			}
			o.Vertex = base.Offsets[o.Vertex].Vertex
		}
	}
}
