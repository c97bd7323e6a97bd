package mmd

import (
	"io"
	"math"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/textenc"
)

const (
	BoneFlagTailIndex    uint16 = 1
	BoneFlagRotatable    uint16 = 2
	BoneFlagTranslatable uint16 = 4
	BoneFlagVisible      uint16 = 8
	BoneFlagEnabled      uint16 = 16
	BoneFlagEnableIK     uint16 = 32

	BoneFlagInheritRotation    uint16 = 256
	BoneFlagInheritTranslation uint16 = 512
	BoneFlagFixedAxis          uint16 = 1024
	BoneFlagLocalAxis          uint16 = 2048
	BoneFlagPhysicsMode        uint16 = 4096
	BoneFlagExternalParent     uint16 = 8192
)

const (
	pmxMaterialDoubleSided   uint8 = 0x01
	pmxMaterialGroundShadow  uint8 = 0x02
	pmxMaterialSelfShadowMap uint8 = 0x04
	pmxMaterialSelfShadow    uint8 = 0x08
	pmxMaterialEdge          uint8 = 0x10
)

const (
	AttrStringEncoding int = iota
	AttrExtUV
	AttrVertIndexSz
	AttrTexIndexSz
	AttrMatIndexSz
	AttrBoneIndexSz
	AttrMorphIndexSz
	AttrRBIndexSz
)

// kneeLimit bounds knee links so the solver bends them forward only.
var (
	kneeLimitMin = Vector3{X: -math.Pi}
	kneeLimitMax = Vector3{X: -0.5 * math.Pi / 180}
)

// PMXWriter writes the .pmx 2.0 layout.
type PMXWriter struct {
	*baseWriter
	info     [8]byte
	textures []string
}

// WritePMX writes m as .pmx. m should have passed Validate.
func WritePMX(m *Model, w io.Writer, opts *WriterOptions) error {
	pw := &PMXWriter{baseWriter: newBaseWriter(w, opts)}
	if opts != nil {
		pw.info[AttrStringEncoding] = byte(opts.PMXEncoding)
	}
	pw.Write(m)
	return pw.end()
}

func vertexIndexSize(n int) byte {
	if n < 1<<8 {
		return 1
	} else if n < 1<<16 {
		return 2
	}
	return 4
}

func indexSize(n int) byte {
	if n < 1<<7 {
		return 1
	} else if n < 1<<15 {
		return 2
	}
	return 4
}

type pmxMaterialTextures struct {
	texture    int
	sphere     int
	sphereMode uint8
	toon       int
	shared     bool
}

// textureTable splits each material's texture string into a shared texture
// list. Names ending in .sph or .spa become sphere maps.
func (w *PMXWriter) textureTable(m *Model) []pmxMaterialTextures {
	index := map[string]int{}
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(w.textures)
		w.textures = append(w.textures, name)
		return index[name]
	}
	result := make([]pmxMaterialTextures, len(m.Materials))
	for i, mat := range m.Materials {
		t := pmxMaterialTextures{texture: -1, sphere: -1, toon: -1}
		for _, name := range strings.Split(mat.Texture, "*") {
			if name == "" {
				continue
			}
			switch strings.ToLower(filepath.Ext(name)) {
			case ".sph":
				t.sphere, t.sphereMode = add(name), 1
			case ".spa":
				t.sphere, t.sphereMode = add(name), 2
			default:
				if t.texture < 0 {
					t.texture = add(name)
				}
			}
		}
		if mat.Toon >= 0 {
			if m.ToonTextures[mat.Toon] == DefaultToonTexture(mat.Toon) {
				t.toon, t.shared = mat.Toon, true
			} else {
				t.toon = add(m.ToonTextures[mat.Toon])
			}
		}
		result[i] = t
	}
	return result
}

func (w *PMXWriter) Write(m *Model) {
	materialTextures := w.textureTable(m)

	morphs := m.Morphs
	if m.HasBaseMorph() {
		morphs = morphs[1:]
	}

	w.info[AttrVertIndexSz] = vertexIndexSize(len(m.Vertexes))
	w.info[AttrTexIndexSz] = indexSize(len(w.textures))
	w.info[AttrMatIndexSz] = indexSize(len(m.Materials))
	w.info[AttrBoneIndexSz] = indexSize(len(m.Bones))
	w.info[AttrMorphIndexSz] = indexSize(len(morphs))
	w.info[AttrRBIndexSz] = indexSize(len(m.RigidBodies))

	if w.section("header") {
		return
	}
	w.bytes([]byte("PMX "))
	w.f32(2.0)
	w.u8(uint8(len(w.info)))
	w.bytes(w.info[:])
	w.writeText(m.Name)
	w.writeText(m.NameEn)
	w.writeText(m.Comment)
	w.writeText(m.CommentEn)

	if w.section("vertices") {
		return
	}
	w.i32(int32(len(m.Vertexes)))
	for _, v := range m.Vertexes {
		w.writeVertex(v)
	}

	if w.section("indices") {
		return
	}
	w.i32(int32(len(m.Faces) * 3))
	for _, f := range m.Faces {
		w.writeUIndex(AttrVertIndexSz, f.Verts[0])
		w.writeUIndex(AttrVertIndexSz, f.Verts[1])
		w.writeUIndex(AttrVertIndexSz, f.Verts[2])
	}

	if w.section("textures") {
		return
	}
	w.i32(int32(len(w.textures)))
	for _, t := range w.textures {
		w.writeText(t)
	}

	if w.section("materials") {
		return
	}
	w.i32(int32(len(m.Materials)))
	for i, mat := range m.Materials {
		w.writeMaterial(mat, materialTextures[i])
	}

	if w.section("bones") {
		return
	}
	controllers := map[int]*IK{}
	for _, ik := range m.IKs {
		controllers[ik.Bone] = ik
	}
	w.i32(int32(len(m.Bones)))
	for i, b := range m.Bones {
		w.writeBone(m, b, controllers[i])
	}

	if w.section("morphs") {
		return
	}
	w.i32(int32(len(morphs)))
	for _, morph := range morphs {
		w.writeMorph(morph)
	}

	if w.section("display frames") {
		return
	}
	w.writeDisplayFrames(m)

	if w.section("rigid bodies") {
		return
	}
	w.i32(int32(len(m.RigidBodies)))
	for _, r := range m.RigidBodies {
		w.writeRigidBody(m, r)
	}

	if w.section("joints") {
		return
	}
	w.i32(int32(len(m.Joints)))
	for _, j := range m.Joints {
		w.writeJoint(j)
	}
}

func (w *PMXWriter) writeText(v string) {
	if w.failed {
		return
	}
	var b []byte
	if w.info[AttrStringEncoding] == byte(UTF8) {
		b = []byte(v)
	} else {
		var err error
		if b, err = textenc.EncodeUTF16LE(v); err != nil {
			w.fail(err)
			return
		}
	}
	w.i32(int32(len(b)))
	w.bytes(b)
}

func (w *PMXWriter) writeIndex(attrTyp int, v int) {
	switch w.info[attrTyp] {
	case 1:
		w.number(int8(v))
	case 2:
		w.number(int16(v))
	default:
		w.number(int32(v))
	}
}

func (w *PMXWriter) writeUIndex(attrTyp int, v int) {
	switch w.info[attrTyp] {
	case 1:
		w.number(uint8(v))
	case 2:
		w.number(uint16(v))
	default:
		w.number(int32(v))
	}
}

func (w *PMXWriter) writeVertex(v *Vertex) {
	w.vec3(v.Pos)
	w.vec3(v.Normal)
	w.vec2(v.UV)

	b0, b1, weight := v.Bones[0], v.Bones[1], v.Weight
	if b0 == NoBone {
		b0, b1, weight = b1, NoBone, 1-weight
	}
	if b0 == NoBone {
		b0 = 0
	}
	if b1 == NoBone {
		// BDEF1
		w.u8(0)
		w.writeIndex(AttrBoneIndexSz, b0)
	} else {
		// BDEF2
		w.u8(1)
		w.writeIndex(AttrBoneIndexSz, b0)
		w.writeIndex(AttrBoneIndexSz, b1)
		w.f32(weight)
	}
	if v.NoEdge {
		w.f32(0)
	} else {
		w.f32(1)
	}
}

func (w *PMXWriter) writeMaterial(m *Material, t pmxMaterialTextures) {
	w.writeText(m.Name)
	w.writeText(m.Name)
	w.vec4(Vector4{X: m.Diffuse.X, Y: m.Diffuse.Y, Z: m.Diffuse.Z, W: m.Alpha})
	w.vec3(m.Specular)
	w.f32(m.Specularity)
	w.vec3(m.Ambient)

	flags := pmxMaterialGroundShadow | pmxMaterialSelfShadowMap | pmxMaterialSelfShadow
	if m.Alpha < 1 {
		flags |= pmxMaterialDoubleSided
	}
	if m.Flags&MaterialFlagEdge != 0 {
		flags |= pmxMaterialEdge
	}
	w.u8(flags)
	w.vec4(Vector4{W: 1})
	w.f32(1)

	w.writeIndex(AttrTexIndexSz, t.texture)
	w.writeIndex(AttrTexIndexSz, t.sphere)
	w.u8(t.sphereMode)
	if t.shared {
		w.u8(1)
		w.u8(uint8(t.toon))
	} else {
		w.u8(0)
		w.writeIndex(AttrTexIndexSz, t.toon)
	}

	w.writeText("")
	w.i32(int32(m.Count))
}

func pmxBoneFlags(b *Bone, ik *IK) uint16 {
	flags := BoneFlagTailIndex | BoneFlagRotatable
	if b.Type != BoneInvisible && b.Type != BoneIKTip {
		flags |= BoneFlagVisible | BoneFlagEnabled
	}
	if b.Type == BoneRotateMove || b.Type == BoneIK {
		flags |= BoneFlagTranslatable
	}
	if (b.Type == BoneRotateLink || b.Type == BoneRotateRatio) && b.IKTarget >= 0 {
		flags |= BoneFlagInheritRotation
	}
	if b.Type == BoneTwist && b.Tail >= 0 {
		flags |= BoneFlagFixedAxis
	}
	if ik != nil {
		flags |= BoneFlagEnableIK
	}
	return flags
}

func (w *PMXWriter) writeBone(m *Model, b *Bone, ik *IK) {
	w.writeText(b.Name)
	w.writeText(b.NameEn)
	w.vec3(b.Pos)
	w.writeIndex(AttrBoneIndexSz, b.Parent)
	w.i32(0)

	flags := pmxBoneFlags(b, ik)
	w.u16(flags)
	w.writeIndex(AttrBoneIndexSz, b.Tail)

	if flags&BoneFlagInheritRotation != 0 {
		w.writeIndex(AttrBoneIndexSz, b.IKTarget)
		w.f32(1)
	}
	if flags&BoneFlagFixedAxis != 0 {
		axis := m.Bones[b.Tail].Pos.Sub(&b.Pos).Normalize()
		w.vec3(*axis)
	}

	if ik != nil {
		w.writeIndex(AttrBoneIndexSz, ik.Target)
		w.i32(int32(ik.Iterations))
		w.f32(ik.Weight * 4)
		w.i32(int32(len(ik.Links)))
		for _, l := range ik.Links {
			w.writeIndex(AttrBoneIndexSz, l)
			if strings.Contains(m.Bones[l].Name, "ひざ") {
				w.u8(1)
				w.vec3(kneeLimitMin)
				w.vec3(kneeLimitMax)
			} else {
				w.u8(0)
			}
		}
	}
}

func (w *PMXWriter) writeMorph(m *Morph) {
	w.writeText(m.Name)
	w.writeText(m.NameEn)
	w.u8(uint8(m.Category))
	// vertex morph
	w.u8(1)
	w.i32(int32(len(m.Offsets)))
	for _, o := range m.Offsets {
		w.writeUIndex(AttrVertIndexSz, o.Vertex)
		w.vec3(o.Offset)
	}
}

type pmxFrameElement struct {
	morph bool
	index int
}

func (w *PMXWriter) writeFrame(name, nameEn string, special bool, elements []pmxFrameElement) {
	w.writeText(name)
	w.writeText(nameEn)
	if special {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.i32(int32(len(elements)))
	for _, e := range elements {
		if e.morph {
			w.u8(1)
			w.writeIndex(AttrMorphIndexSz, e.index)
		} else {
			w.u8(0)
			w.writeIndex(AttrBoneIndexSz, e.index)
		}
	}
}

func (w *PMXWriter) writeDisplayFrames(m *Model) {
	var root, expressions []pmxFrameElement
	if len(m.Bones) > 0 {
		root = append(root, pmxFrameElement{index: 0})
	}
	shift := 0
	if m.HasBaseMorph() {
		shift = 1
	}
	for _, i := range m.MorphOrder {
		expressions = append(expressions, pmxFrameElement{morph: true, index: i - shift})
	}
	groups := make([][]pmxFrameElement, len(m.BoneGroups))
	for _, d := range m.BoneDisplay {
		groups[d.Group] = append(groups[d.Group], pmxFrameElement{index: d.Bone})
	}

	w.i32(int32(2 + len(m.BoneGroups)))
	w.writeFrame("Root", "Root", true, root)
	w.writeFrame("表情", "Exp", true, expressions)
	for i, g := range m.BoneGroups {
		w.writeFrame(g.Name, g.NameEn, false, groups[i])
	}
	w.log.Debug("display frames", zap.Int("groups", len(m.BoneGroups)), zap.Int("morphs", len(expressions)))
}

// writeRigidBody stores the position in model space; .pmx has no
// bone-relative form.
func (w *PMXWriter) writeRigidBody(m *Model, r *RigidBody) {
	w.writeText(r.Name)
	w.writeText(r.Name)
	w.writeIndex(AttrBoneIndexSz, r.Bone)
	w.u8(r.Group)
	w.u16(r.Mask)
	w.u8(uint8(r.Shape.Kind()))
	w.vec3(r.Shape.Size())
	anchor := 0
	if r.Bone >= 0 {
		anchor = r.Bone
	}
	w.vec3(*m.Bones[anchor].Pos.Add(&r.Pos))
	w.vec3(r.Rot)
	w.f32(r.Mass)
	w.f32(r.LinearDamping)
	w.f32(r.AngularDamping)
	w.f32(r.Restitution)
	w.f32(r.Friction)
	w.u8(uint8(r.Mode))
}

func (w *PMXWriter) writeJoint(j *Joint) {
	w.writeText(j.Name)
	w.writeText(j.Name)
	// spring 6DOF
	w.u8(0)
	w.writeIndex(AttrRBIndexSz, j.A)
	w.writeIndex(AttrRBIndexSz, j.B)
	w.vec3(j.Pos)
	w.vec3(j.Rot)
	w.vec3(j.MoveMin)
	w.vec3(j.MoveMax)
	w.vec3(j.RotMin)
	w.vec3(j.RotMax)
	w.vec3(j.SpringMove)
	w.vec3(j.SpringRot)
}
