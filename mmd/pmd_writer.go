package mmd

import (
	"io"
	"math"
)

// PMDWriter writes the legacy .pmd layout.
type PMDWriter struct {
	*baseWriter
}

// WritePMD writes m as .pmd. m should have passed Validate and ValidatePMD.
func WritePMD(m *Model, w io.Writer, opts *WriterOptions) error {
	pw := &PMDWriter{baseWriter: newBaseWriter(w, opts)}
	pw.Write(m)
	return pw.end()
}

func (w *PMDWriter) Write(m *Model) {
	if w.section("header") {
		return
	}
	w.bytes([]byte("Pmd"))
	w.f32(1.0)
	w.fixed(m.Name, 20)
	w.fixed(m.Comment, 256)

	if w.section("vertices") {
		return
	}
	w.u32(uint32(len(m.Vertexes)))
	for _, v := range m.Vertexes {
		w.writeVertex(v)
	}

	if w.section("indices") {
		return
	}
	w.u32(uint32(len(m.Faces) * 3))
	for _, f := range m.Faces {
		w.u16(uint16(f.Verts[0]))
		w.u16(uint16(f.Verts[1]))
		w.u16(uint16(f.Verts[2]))
	}

	if w.section("materials") {
		return
	}
	w.u32(uint32(len(m.Materials)))
	for _, mat := range m.Materials {
		w.writeMaterial(mat)
	}

	if w.section("bones") {
		return
	}
	w.u16(uint16(len(m.Bones)))
	for _, b := range m.Bones {
		w.writeBone(b)
	}

	if w.section("ik") {
		return
	}
	w.u16(uint16(len(m.IKs)))
	for _, ik := range m.IKs {
		w.u16(uint16(ik.Bone))
		w.u16(uint16(ik.Target))
		w.u8(uint8(len(ik.Links)))
		w.u16(uint16(ik.Iterations))
		w.f32(ik.Weight)
		for _, l := range ik.Links {
			w.u16(uint16(l))
		}
	}

	if w.section("morphs") {
		return
	}
	w.writeMorphs(m)

	if w.section("morph display") {
		return
	}
	w.u8(uint8(len(m.MorphOrder)))
	for _, i := range m.MorphOrder {
		w.u16(uint16(i))
	}

	if w.section("bone groups") {
		return
	}
	w.u8(uint8(len(m.BoneGroups)))
	for _, g := range m.BoneGroups {
		w.fixed(g.Name+"\n", 50)
	}

	if w.section("bone display") {
		return
	}
	w.u32(uint32(len(m.BoneDisplay)))
	for _, d := range m.BoneDisplay {
		w.u16(uint16(d.Bone))
		w.u8(uint8(d.Group + 1))
	}

	if w.section("english") {
		return
	}
	w.u8(1)
	w.fixed(m.NameEn, 20)
	w.fixed(m.CommentEn, 256)
	for _, b := range m.Bones {
		w.fixed(b.NameEn, 20)
	}
	for i, morph := range m.Morphs {
		if i == 0 && m.HasBaseMorph() {
			continue
		}
		w.fixed(morph.NameEn, 20)
	}
	for _, g := range m.BoneGroups {
		w.fixed(g.NameEn+"\n", 50)
	}

	if w.section("toon textures") {
		return
	}
	for _, t := range m.ToonTextures {
		w.fixed(t, 100)
	}

	if w.section("rigid bodies") {
		return
	}
	w.u32(uint32(len(m.RigidBodies)))
	for _, r := range m.RigidBodies {
		w.writeRigidBody(r)
	}

	if w.section("joints") {
		return
	}
	w.u32(uint32(len(m.Joints)))
	for _, j := range m.Joints {
		w.writeJoint(j)
	}
}

func (w *PMDWriter) writeVertex(v *Vertex) {
	w.vec3(v.Pos)
	w.vec3(v.Normal)
	w.vec2(v.UV)
	b0, b1 := v.Bones[0], v.Bones[1]
	if b0 == NoBone {
		b0 = 0
	}
	if b1 == NoBone {
		b1 = 0
	}
	w.u16(uint16(b0))
	w.u16(uint16(b1))
	w.u8(uint8(math.Round(float64(v.Weight) * 100)))
	if v.NoEdge {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *PMDWriter) writeMaterial(m *Material) {
	w.vec3(m.Diffuse)
	w.f32(m.Alpha)
	w.f32(m.Specularity)
	w.vec3(m.Specular)
	w.vec3(m.Ambient)
	if m.Toon < 0 {
		w.u8(0xFF)
	} else {
		w.u8(uint8(m.Toon))
	}
	w.u8(m.Flags & MaterialFlagEdge)
	w.u32(uint32(m.Count))
	w.fixed(m.Texture, 20)
}

func (w *PMDWriter) writeBone(b *Bone) {
	w.fixed(b.Name, 20)
	w.boneRef16(b.Parent)
	if b.Tail < 0 {
		w.u16(0)
	} else {
		w.u16(uint16(b.Tail))
	}
	w.u8(uint8(b.Type))
	if b.IKTarget < 0 {
		w.u16(0)
	} else {
		w.u16(uint16(b.IKTarget))
	}
	w.vec3(b.Pos)
}

// writeMorphs writes the base morph with absolute positions, then every
// other morph indexed into the base vertex list.
func (w *PMDWriter) writeMorphs(m *Model) {
	w.u16(uint16(len(m.Morphs)))
	if len(m.Morphs) == 0 {
		return
	}
	baseIndex := map[int]uint32{}
	for i, morph := range m.Morphs {
		w.fixed(morph.Name, 20)
		w.u32(uint32(len(morph.Offsets)))
		w.u8(uint8(morph.Category))
		for j, o := range morph.Offsets {
			if i == 0 {
				baseIndex[o.Vertex] = uint32(j)
				w.u32(uint32(o.Vertex))
				w.vec3(*m.Vertexes[o.Vertex].Pos.Add(&o.Offset))
			} else {
				w.u32(baseIndex[o.Vertex])
				w.vec3(o.Offset)
			}
		}
	}
}

func (w *PMDWriter) writeRigidBody(r *RigidBody) {
	w.fixed(r.Name, 20)
	w.boneRef16(r.Bone)
	w.u8(r.Group)
	w.u16(r.Mask)
	w.u8(uint8(r.Shape.Kind()))
	w.vec3(r.Shape.Size())
	w.vec3(r.Pos)
	w.vec3(r.Rot)
	w.f32(r.Mass)
	w.f32(r.LinearDamping)
	w.f32(r.AngularDamping)
	w.f32(r.Restitution)
	w.f32(r.Friction)
	w.u8(uint8(r.Mode))
}

func (w *PMDWriter) writeJoint(j *Joint) {
	w.fixed(j.Name, 20)
	w.u32(uint32(j.A))
	w.u32(uint32(j.B))
	w.vec3(j.Pos)
	w.vec3(j.Rot)
	w.vec3(j.MoveMin)
	w.vec3(j.MoveMax)
	w.vec3(j.RotMin)
	w.vec3(j.RotMax)
	w.vec3(j.SpringMove)
	w.vec3(j.SpringRot)
}
