package mmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/DangDinhQuocTrung/pymeshio/textenc"
)

// see also:
// https://gist.github.com/felixjones/f8a06bd48f9da9a4539f

// PMXParser reads .pmx 2.0 and 2.1 files. Morph kinds and skinning modes
// the model cannot hold are read and dropped.
type PMXParser struct {
	*baseParser
	info     []byte
	textures []string
}

func NewPMXParser(r io.Reader) *PMXParser {
	return &PMXParser{baseParser: newBaseParser(r)}
}

// ReadPMX reads a .pmx model.
func ReadPMX(r io.Reader) (*Model, error) {
	p := NewPMXParser(r)
	m := p.Parse()
	if err := p.end(); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PMXParser) readVInt(sz byte) int {
	switch sz {
	case 1:
		var v int8
		p.number(&v)
		return int(v)
	case 2:
		var v int16
		p.number(&v)
		return int(v)
	}
	return int(p.i32())
}

func (p *PMXParser) readVUInt(sz byte) int {
	switch sz {
	case 1:
		return int(p.u8())
	case 2:
		return int(p.u16())
	}
	return int(p.i32())
}

func (p *PMXParser) readIndex(attrTyp int) int {
	return p.readVInt(p.info[attrTyp])
}

func (p *PMXParser) readUIndex(attrTyp int) int {
	return p.readVUInt(p.info[attrTyp])
}

func (p *PMXParser) readText() string {
	n := p.count(int64(p.i32()))
	b := make([]byte, n)
	p.bytes(b)
	if p.failed {
		return ""
	}
	if p.info[AttrStringEncoding] == byte(UTF8) {
		return string(b)
	}
	s, err := textenc.DecodeUTF16LE(b)
	if err != nil {
		p.fail(err)
	}
	return s
}

func (p *PMXParser) readHeader(m *Model) {
	p.magic("PMX ")
	if v := p.f32(); !p.failed && v < 2.0 {
		p.fail(fmt.Errorf("%w: pmx version %v", ErrUnsupportedFormat, v))
	}
	n := int(p.u8())
	if !p.failed && n < AttrRBIndexSz+1 {
		p.fail(fmt.Errorf("%w: %d header attributes", ErrUnsupportedFormat, n))
	}
	p.info = make([]byte, n)
	p.bytes(p.info)
	if p.failed {
		// keep later index reads well defined
		p.info = make([]byte, AttrRBIndexSz+1)
	}
	m.Name = p.readText()
	m.NameEn = p.readText()
	m.Comment = p.readText()
	m.CommentEn = p.readText()
}

func (p *PMXParser) readVertex() *Vertex {
	var v Vertex
	v.Pos = p.vec3()
	v.Normal = p.vec3()
	v.UV = p.vec2()
	for i := 0; i < int(p.info[AttrExtUV]); i++ {
		p.vec4()
	}
	v.Bones = [2]int{NoBone, NoBone}
	switch t := p.u8(); t {
	case 0:
		v.Bones[0] = p.readIndex(AttrBoneIndexSz)
		v.Weight = 1
	case 1, 3:
		v.Bones[0] = p.readIndex(AttrBoneIndexSz)
		v.Bones[1] = p.readIndex(AttrBoneIndexSz)
		v.Weight = p.f32()
		if t == 3 {
			// SDEF C, R0, R1
			p.vec3()
			p.vec3()
			p.vec3()
		}
	case 2, 4:
		// BDEF4 and QDEF keep the two heaviest bones
		var bones [4]int
		var weights [4]float32
		for i := range bones {
			bones[i] = p.readIndex(AttrBoneIndexSz)
		}
		for i := range weights {
			weights[i] = p.f32()
		}
		v.Bones, v.Weight = heaviestPair(bones, weights)
	default:
		p.fail(fmt.Errorf("%w: vertex weight type %d", ErrUnsupportedFormat, t))
	}
	v.NoEdge = p.f32() == 0
	return &v
}

func heaviestPair(bones [4]int, weights [4]float32) ([2]int, float32) {
	a, b := -1, -1
	for i := range bones {
		if bones[i] < 0 || weights[i] <= 0 {
			continue
		}
		if a < 0 || weights[i] > weights[a] {
			a, b = i, a
		} else if b < 0 || weights[i] > weights[b] {
			b = i
		}
	}
	switch {
	case a < 0:
		return [2]int{bones[0], NoBone}, 1
	case b < 0:
		return [2]int{bones[a], NoBone}, 1
	}
	return [2]int{bones[a], bones[b]}, weights[a] / (weights[a] + weights[b])
}

func (p *PMXParser) texture(i int) string {
	if i < 0 || i >= len(p.textures) {
		return ""
	}
	return p.textures[i]
}

func (p *PMXParser) readMaterial(m *Model) *Material {
	var mat Material
	mat.Name = p.readText()
	p.readText()
	diffuse := p.vec4()
	mat.Diffuse = Vector3{X: diffuse.X, Y: diffuse.Y, Z: diffuse.Z}
	mat.Alpha = diffuse.W
	mat.Specular = p.vec3()
	mat.Specularity = p.f32()
	mat.Ambient = p.vec3()
	if p.u8()&pmxMaterialEdge != 0 {
		mat.Flags |= MaterialFlagEdge
	}
	p.vec4()
	p.f32()

	var names []string
	if t := p.texture(p.readIndex(AttrTexIndexSz)); t != "" {
		names = append(names, t)
	}
	sphere := p.texture(p.readIndex(AttrTexIndexSz))
	if p.u8() != 0 && sphere != "" {
		names = append(names, sphere)
	}
	mat.Texture = strings.Join(names, "*")

	mat.Toon = -1
	if p.u8() != 0 {
		mat.Toon = int(p.u8())
		if mat.Toon >= ToonSlots {
			mat.Toon = -1
		}
	} else if t := p.texture(p.readIndex(AttrTexIndexSz)); t != "" {
		mat.Toon = toonSlot(m, t)
	}

	p.readText()
	mat.Count = int(p.i32())
	return &mat
}

// toonSlot finds or claims a toon slot for a custom toon texture. When every
// slot holds a different custom texture, the material gets none.
func toonSlot(m *Model, name string) int {
	for i, t := range m.ToonTextures {
		if t == name {
			return i
		}
	}
	for i, t := range m.ToonTextures {
		if t == DefaultToonTexture(i) {
			m.ToonTextures[i] = name
			return i
		}
	}
	return -1
}

func (p *PMXParser) readBone(m *Model, index int) *Bone {
	b := &Bone{Tail: NoBone, IKTarget: NoBone}
	b.Name = p.readText()
	b.NameEn = p.readText()
	b.Pos = p.vec3()
	b.Parent = p.readIndex(AttrBoneIndexSz)
	p.i32()
	flags := p.u16()

	if flags&BoneFlagTailIndex != 0 {
		b.Tail = p.readIndex(AttrBoneIndexSz)
	} else {
		p.vec3()
	}

	switch {
	case flags&BoneFlagEnableIK != 0:
		b.Type = BoneIK
	case flags&(BoneFlagInheritRotation|BoneFlagInheritTranslation) != 0:
		b.Type = BoneRotateLink
	case flags&BoneFlagFixedAxis != 0:
		b.Type = BoneTwist
	case flags&BoneFlagVisible == 0:
		b.Type = BoneInvisible
	case flags&BoneFlagTranslatable != 0:
		b.Type = BoneRotateMove
	default:
		b.Type = BoneRotate
	}

	if flags&(BoneFlagInheritRotation|BoneFlagInheritTranslation) != 0 {
		b.IKTarget = p.readIndex(AttrBoneIndexSz)
		p.f32()
	}
	if flags&BoneFlagFixedAxis != 0 {
		p.vec3()
	}
	if flags&BoneFlagLocalAxis != 0 {
		p.vec3()
		p.vec3()
	}
	if flags&BoneFlagExternalParent != 0 {
		p.i32()
	}
	if flags&BoneFlagEnableIK != 0 {
		ik := &IK{Bone: index}
		ik.Target = p.readIndex(AttrBoneIndexSz)
		b.IKTarget = ik.Target
		ik.Iterations = int(p.i32())
		ik.Weight = p.f32() / 4
		n := p.count(int64(p.i32()))
		for i := 0; i < n && !p.failed; i++ {
			ik.Links = append(ik.Links, p.readIndex(AttrBoneIndexSz))
			if p.u8() != 0 {
				p.vec3()
				p.vec3()
			}
		}
		m.IKs = append(m.IKs, ik)
	}
	return b
}

// readMorph returns nil for morph kinds other than vertex morphs.
func (p *PMXParser) readMorph() *Morph {
	m := &Morph{}
	m.Name = p.readText()
	m.NameEn = p.readText()
	m.Category = MorphCategory(p.u8())
	kind := p.u8()
	n := p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		switch kind {
		case 0, 9:
			// group, flip
			p.readIndex(AttrMorphIndexSz)
			p.f32()
		case 1:
			m.Offsets = append(m.Offsets, MorphOffset{Vertex: p.readUIndex(AttrVertIndexSz), Offset: p.vec3()})
		case 2:
			p.readIndex(AttrBoneIndexSz)
			p.vec3()
			p.vec4()
		case 3, 4, 5, 6, 7:
			p.readUIndex(AttrVertIndexSz)
			p.vec4()
		case 8:
			p.readIndex(AttrMatIndexSz)
			p.u8()
			p.vec4()
			p.vec3()
			p.f32()
			p.vec3()
			p.vec4()
			p.f32()
			p.vec4()
			p.vec4()
			p.vec4()
		case 10:
			// impulse
			p.readIndex(AttrRBIndexSz)
			p.u8()
			p.vec3()
			p.vec3()
		default:
			p.fail(fmt.Errorf("%w: morph type %d", ErrUnsupportedFormat, kind))
		}
	}
	if kind != 1 {
		return nil
	}
	if m.Category == MorphBase || m.Category > MorphOther {
		m.Category = MorphOther
	}
	return m
}

func (p *PMXParser) readRigidBody(m *Model) *RigidBody {
	var r RigidBody
	r.Name = p.readText()
	p.readText()
	r.Bone = p.readIndex(AttrBoneIndexSz)
	r.Group = p.u8()
	r.Mask = p.u16()
	kind := ShapeKind(p.u8())
	shape, err := NewShape(kind, p.vec3())
	if err != nil {
		p.fail(err)
	}
	r.Shape = shape
	pos := p.vec3()
	anchor := 0
	if r.Bone >= 0 {
		anchor = r.Bone
	}
	if anchor < len(m.Bones) {
		pos = *pos.Sub(&m.Bones[anchor].Pos)
	}
	r.Pos = pos
	r.Rot = p.vec3()
	r.Mass = p.f32()
	r.LinearDamping = p.f32()
	r.AngularDamping = p.f32()
	r.Restitution = p.f32()
	r.Friction = p.f32()
	r.Mode = RigidMode(p.u8())
	return &r
}

func (p *PMXParser) readJoint() *Joint {
	var j Joint
	j.Name = p.readText()
	p.readText()
	if t := p.u8(); !p.failed && t > 5 {
		p.fail(fmt.Errorf("%w: joint type %d", ErrUnsupportedFormat, t))
	}
	j.A = p.readIndex(AttrRBIndexSz)
	j.B = p.readIndex(AttrRBIndexSz)
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

// readDisplayFrames restores the morph order from the special "表情" frame
// and bone groups from the ordinary frames.
func (p *PMXParser) readDisplayFrames(m *Model, morphIndex map[int]int) {
	n := p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		name := p.readText()
		nameEn := p.readText()
		special := p.u8() != 0
		group := -1
		if !special {
			group = len(m.BoneGroups)
			m.BoneGroups = append(m.BoneGroups, &BoneGroup{Name: name, NameEn: nameEn})
		}
		count := p.count(int64(p.i32()))
		for j := 0; j < count && !p.failed; j++ {
			if p.u8() == 0 {
				bone := p.readIndex(AttrBoneIndexSz)
				if group >= 0 {
					m.BoneDisplay = append(m.BoneDisplay, BoneDisplay{Bone: bone, Group: group})
				}
			} else if mi, ok := morphIndex[p.readIndex(AttrMorphIndexSz)]; ok {
				m.MorphOrder = append(m.MorphOrder, mi)
			}
		}
	}
}

// Parse reads the whole file. Errors are reported by end.
func (p *PMXParser) Parse() *Model {
	m := NewModel()
	p.readHeader(m)

	n := p.count(int64(p.i32()))
	m.Vertexes = make([]*Vertex, 0, capacity(n))
	for i := 0; i < n && !p.failed; i++ {
		m.Vertexes = append(m.Vertexes, p.readVertex())
	}

	n = p.count(int64(p.i32())) / 3
	m.Faces = make([]*Face, 0, capacity(n))
	for i := 0; i < n && !p.failed; i++ {
		var f Face
		f.Verts[0] = p.readUIndex(AttrVertIndexSz)
		f.Verts[1] = p.readUIndex(AttrVertIndexSz)
		f.Verts[2] = p.readUIndex(AttrVertIndexSz)
		m.Faces = append(m.Faces, &f)
	}

	n = p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		p.textures = append(p.textures, p.readText())
	}

	n = p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		m.Materials = append(m.Materials, p.readMaterial(m))
	}

	n = p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		m.Bones = append(m.Bones, p.readBone(m, i))
	}

	// file morph index -> model morph index, leaving room for the base
	morphIndex := map[int]int{}
	morphs := []*Morph{{Name: "base", Category: MorphBase}}
	n = p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		if morph := p.readMorph(); morph != nil {
			morphIndex[i] = len(morphs)
			morphs = append(morphs, morph)
		}
	}
	if len(morphs) > 1 {
		m.Morphs = withBase(morphs)
	}

	p.readDisplayFrames(m, morphIndex)

	n = p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		m.RigidBodies = append(m.RigidBodies, p.readRigidBody(m))
	}

	n = p.count(int64(p.i32()))
	for i := 0; i < n && !p.failed; i++ {
		m.Joints = append(m.Joints, p.readJoint())
	}
	return m
}

// withBase fills morphs[0] with every vertex the other morphs move.
func withBase(morphs []*Morph) []*Morph {
	seen := map[int]bool{}
	base := morphs[0]
	for _, morph := range morphs[1:] {
		for _, o := range morph.Offsets {
			if !seen[o.Vertex] {
				seen[o.Vertex] = true
				base.Offsets = append(base.Offsets, MorphOffset{Vertex: o.Vertex})
			}
		}
	}
	return morphs
}
