package converter

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DangDinhQuocTrung/pymeshio/localize"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
	"github.com/DangDinhQuocTrung/pymeshio/scene"
)

func quadScene() *scene.Scene {
	diffuse := [3]float32{1, 0, 0}
	return &scene.Scene{
		Name: "quad",
		Vertices: []scene.Vertex{
			{Pos: [3]float32{1, 2, 3}, Normal: [3]float32{0, 0, 1}, UV: [2]float32{0.25, 0.25}, Bone0: "root", Weight: 1},
			{Pos: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, 1}, Bone0: "root", Weight: 1},
			{Pos: [3]float32{1, 1, 0}, Normal: [3]float32{0, 0, 1}, Bone0: "arm", Bone1: "root", Weight: 1.5},
			{Pos: [3]float32{0, 1, 0}, Normal: [3]float32{0, 0, 1}, Bone0: "arm", Weight: 1, NoEdge: true},
		},
		FaceGroups: []scene.FaceGroup{{Material: "skin", Indices: []int{0, 1, 2, 0, 2, 3}}},
		Materials: []scene.Material{{
			Name:     "skin",
			Diffuse:  &diffuse,
			Edge:     true,
			Textures: []string{`C:\tex\a.png`, "spheres/b.sph"},
		}},
		Bones: []scene.Bone{
			{Name: "root", Parent: -1, Tail: 1, Type: 1, IKTarget: -1, Pos: [3]float32{0, 0, 1}},
			{Name: "arm", Parent: 0, Tail: -1, IKTarget: -1, Pos: [3]float32{1, 0, 2}},
		},
	}
}

func convertEmpty(s *scene.Scene) (*mmd.Model, error) {
	return Convert(s, &SceneToMMDOption{Localization: localize.Empty()})
}

func TestConvertQuad(t *testing.T) {
	m, err := convertEmpty(quadScene())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertexes) != 4 || len(m.Faces) != 2 || len(m.Materials) != 1 {
		t.Fatal("unexpected model", len(m.Vertexes), len(m.Faces), len(m.Materials))
	}
	if m.Name != scene.DefaultModelName || m.NameEn != "quad" || m.Comment != scene.DefaultComment {
		t.Error("metadata", m.Name, m.NameEn, m.Comment)
	}

	v := m.Vertexes[0]
	if v.Pos != (mmd.Vector3{X: 1, Y: 3, Z: 2}) || v.Normal != (mmd.Vector3{Y: 1}) {
		t.Error("vertex transform", v.Pos, v.Normal)
	}
	if v.UV != (mmd.Vector2{X: 0.25, Y: 0.75}) {
		t.Error("uv", v.UV)
	}
	if v.Bones != [2]int{0, mmd.NoBone} {
		t.Error("bones", v.Bones)
	}
	if v := m.Vertexes[2]; v.Bones != [2]int{1, 0} || v.Weight != 1 {
		t.Error("weight clamp", v.Bones, v.Weight)
	}
	if !m.Vertexes[3].NoEdge {
		t.Error("edge flag")
	}
	if m.Faces[1].Verts != [3]int{0, 2, 3} {
		t.Error("face", m.Faces[1].Verts)
	}

	mat := m.Materials[0]
	if mat.Count != 6 || mat.Texture != "a.png*b.sph" || mat.Flags != mmd.MaterialFlagEdge {
		t.Error("material", mat)
	}
	if mat.Diffuse != (mmd.Vector3{X: 1}) || mat.Alpha != 1 || mat.Specularity != 0 {
		t.Error("material defaults", mat)
	}

	if m.Bones[0].Parent != -1 || m.Bones[1].Parent != 0 || m.Bones[1].NameEn != "arm" {
		t.Error("bones", m.Bones[0], m.Bones[1])
	}
	if m.Bones[1].Pos != (mmd.Vector3{X: 1, Y: 2}) {
		t.Error("bone pos", m.Bones[1].Pos)
	}
	if len(m.Morphs) != 0 || len(m.MorphOrder) != 0 || len(m.RigidBodies) != 0 || len(m.Joints) != 0 {
		t.Error("unexpected extras")
	}
}

func TestConvertDefaultMaterial(t *testing.T) {
	s := quadScene()
	s.Materials = nil
	core, logs := observer.New(zapcore.WarnLevel)
	m, err := Convert(s, &SceneToMMDOption{Localization: localize.Empty(), Logger: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	mat := m.Materials[0]
	if mat.Diffuse != (mmd.Vector3{X: 0.5, Y: 0.5, Z: 0.5}) || mat.Alpha != 1 || mat.Texture != "" {
		t.Error("default material", mat)
	}
	if logs.FilterMessage("material not found, using default").Len() != 1 {
		t.Error("expected fallback warning", logs.All())
	}
}

func TestConvertLocalized(t *testing.T) {
	s := quadScene()
	s.Bones = []scene.Bone{
		{Name: "center", Parent: -1, Tail: -1, IKTarget: -1},
		{Name: "eyes", Parent: 0, Tail: -1, IKTarget: -1},
		{Name: "eye_L", Parent: 0, Tail: -1, IKTarget: -1, Group: "IK"},
		{Name: "eye_L_tip", Parent: 2, Tail: -1, IKTarget: -1, Group: "IK"},
		{Name: "extra", Parent: 0, Tail: -1, IKTarget: -1, Group: "Custom"},
	}
	s.BoneGroups = []string{"IK", "Custom"}
	for i := range s.Vertices {
		s.Vertices[i].Bone0, s.Vertices[i].Bone1 = "center", ""
	}
	m, err := Convert(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	center := m.Bones[0]
	if center.Name != "センター" || center.NameEn != "center" || center.Type != mmd.BoneRotateMove {
		t.Error("center", center)
	}
	eye := m.Bones[2]
	if eye.Type != mmd.BoneRotateLink || eye.IKTarget != 1 {
		t.Error("eye should follow eyes", eye)
	}
	if m.Bones[4].Name != "extra" || m.Bones[4].NameEn != "extra" {
		t.Error("unlocalized bone", m.Bones[4])
	}

	if len(m.BoneGroups) != 2 || m.BoneGroups[0].Name != "ＩＫ" || m.BoneGroups[1].Name != "Custom" {
		t.Error("groups", m.BoneGroups)
	}
	// the invisible eye tip is not displayed
	want := []mmd.BoneDisplay{{Bone: 2, Group: 0}, {Bone: 4, Group: 1}}
	if len(m.BoneDisplay) != len(want) {
		t.Fatal("display", m.BoneDisplay)
	}
	for i, d := range want {
		if m.BoneDisplay[i] != d {
			t.Error("display", i, m.BoneDisplay[i])
		}
	}
}

func TestConvertIK(t *testing.T) {
	s := quadScene()
	s.Bones = []scene.Bone{
		{Name: "root", Parent: -1, Tail: -1, IKTarget: -1},
		{Name: "leg", Parent: 0, Tail: 2, IKTarget: -1},
		{Name: "knee", Parent: 1, Tail: 3, IKTarget: -1},
		{Name: "ankle", Parent: 2, Tail: -1, IKTarget: -1},
		{Name: "leg IK", Parent: 0, Tail: -1, Type: 2, IKTarget: 3},
	}
	s.IKs = []scene.IK{{Target: "leg IK", Effector: "ankle", Length: 2, Iterations: 40, Weight: 0.5}}
	for i := range s.Vertices {
		s.Vertices[i].Bone0, s.Vertices[i].Bone1 = "leg", "knee"
	}
	m, err := convertEmpty(s)
	if err != nil {
		t.Fatal(err)
	}
	ik := m.IKs[0]
	if ik.Bone != 4 || ik.Target != 3 || len(ik.Links) != 2 || ik.Links[0] != 2 || ik.Links[1] != 1 {
		t.Error("ik", ik)
	}
	if ik.Iterations != 40 || ik.Weight != 0.5 {
		t.Error("ik params", ik)
	}

	s.IKs[0].Length = 4
	_, err = convertEmpty(s)
	var chainErr mmd.ChainError
	if !errors.As(err, &chainErr) || chainErr.Want != 4 || chainErr.Got != 3 {
		t.Error("expected chain length mismatch", err)
	}

	s.IKs[0].Length = 1
	s.IKs[0].Effector = "foot"
	if _, err := convertEmpty(s); !errors.Is(err, mmd.ErrUnresolvedReference) {
		t.Error("expected unresolved effector", err)
	}
}

func TestConvertMorphs(t *testing.T) {
	s := quadScene()
	offset := func(v int) []scene.Offset { return []scene.Offset{{Vertex: v, Offset: [3]float32{0, 1, 0}}} }
	s.Morphs = []scene.Morph{
		{Name: "serious", Offsets: offset(0)},
		{Name: "custom", Offsets: offset(1)},
		{Name: "blink", Offsets: offset(2)},
		{Name: "a", Offsets: offset(2)},
		{Name: "tongue", Offsets: offset(3)},
	}
	m, err := Convert(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Morphs) != 6 || !m.HasBaseMorph() || m.Morphs[0].Name != BaseMorphName {
		t.Fatal("morphs", m.Morphs)
	}
	if len(m.Morphs[0].Offsets) != 4 {
		t.Error("base should cover every morphed vertex", m.Morphs[0].Offsets)
	}
	if m.Morphs[1].Name != "真面目" || m.Morphs[1].Category != mmd.MorphEyebrow || m.Morphs[2].Category != mmd.MorphOther {
		t.Error("categories", m.Morphs[1], m.Morphs[2])
	}
	if o := m.Morphs[1].Offsets[0]; o.Offset != (mmd.Vector3{Z: 1}) {
		t.Error("offset transform", o)
	}
	want := []int{1, 3, 4, 2, 5}
	if len(m.MorphOrder) != len(want) {
		t.Fatal("order", m.MorphOrder)
	}
	for i := range want {
		if m.MorphOrder[i] != want[i] {
			t.Error("order", m.MorphOrder)
			break
		}
	}

	s.Morphs[0].Offsets[0].Vertex = 10
	if _, err := Convert(s, nil); !errors.Is(err, mmd.ErrIndexOutOfRange) {
		t.Error("expected morph vertex out of range", err)
	}
}

func TestConvertPhysics(t *testing.T) {
	s := quadScene()
	s.RigidBodies = []scene.RigidBody{
		{Name: "body", Bone: "root", Shape: 1, Scale: [3]float32{1, 2, 3}, Location: [3]float32{0, 0, 1}},
		{Name: "arm", Bone: "arm", Shape: 2, Scale: [3]float32{0.5, 0, 2}, Location: [3]float32{1, 1, 2}, Rotation: [3]float32{0.25, 0.5, 0.75}, Mode: 1},
	}
	s.Joints = []scene.Joint{{Name: "shoulder", A: "body", B: "arm", Location: [3]float32{1, 2, 3}, RotMax: [3]float32{1, 0, 0}}}
	m, err := convertEmpty(s)
	if err != nil {
		t.Fatal(err)
	}
	body, arm := m.RigidBodies[0], m.RigidBodies[1]
	if body.Bone != mmd.NoBone || body.Pos != (mmd.Vector3{}) || body.Shape != (mmd.Box{Width: 1, Height: 2, Depth: 3}) {
		t.Error("root anchored body", body)
	}
	if arm.Bone != 1 || arm.Pos != (mmd.Vector3{Z: 1}) || arm.Shape != (mmd.Capsule{Radius: 0.5, Height: 2}) {
		t.Error("arm body", arm)
	}
	if arm.Rot != (mmd.Vector3{X: -0.25, Y: -0.75, Z: -0.5}) || arm.Mode != mmd.RigidPhysics {
		t.Error("arm rotation", arm.Rot)
	}
	j := m.Joints[0]
	if j.A != 0 || j.B != 1 || j.Pos != (mmd.Vector3{X: 1, Y: 3, Z: 2}) || j.RotMax != (mmd.Vector3{X: 1}) {
		t.Error("joint", j)
	}

	s.Joints[0].B = "leg"
	if _, err := convertEmpty(s); !errors.Is(err, mmd.ErrUnresolvedReference) {
		t.Error("expected unresolved joint", err)
	}
	s.Joints = nil
	s.RigidBodies[1].Shape = 5
	if _, err := convertEmpty(s); err == nil {
		t.Error("expected shape error")
	}
	s.RigidBodies[1].Shape = 0
	s.RigidBodies[1].Bone = "tail"
	var refErr mmd.ReferenceError
	if _, err := convertEmpty(s); !errors.As(err, &refErr) || refErr.Name != "tail" {
		t.Error("expected unresolved rigid body bone", err)
	}
}

func TestConvertErrors(t *testing.T) {
	for name, mutate := range map[string]func(s *scene.Scene){
		"face out of range": func(s *scene.Scene) { s.FaceGroups[0].Indices[5] = 4 },
		"truncated face":    func(s *scene.Scene) { s.FaceGroups[0].Indices = s.FaceGroups[0].Indices[:4] },
		"unknown vertex bone": func(s *scene.Scene) {
			s.Vertices[0].Bone0 = "nobody"
		},
	} {
		s := quadScene()
		mutate(s)
		_, err := convertEmpty(s)
		if name == "unknown vertex bone" {
			if !errors.Is(err, mmd.ErrUnresolvedReference) {
				t.Error(name, err)
			}
			continue
		}
		if !errors.Is(err, mmd.ErrIndexOutOfRange) {
			t.Error(name, err)
		}
	}

	s := quadScene()
	s.Bones[0].Parent = 1
	var h mmd.HierarchyError
	if _, err := convertEmpty(s); !errors.As(err, &h) || h.Index != 0 {
		t.Error("expected hierarchy error", err)
	}
}

func TestConvertToon(t *testing.T) {
	s := quadScene()
	s.Toon = &scene.Toon{Textures: []string{`toons\skin.bmp`, "", "hair.bmp"}}
	m, err := convertEmpty(s)
	if err != nil {
		t.Fatal(err)
	}
	if m.ToonTextures[0] != "skin.bmp" || m.ToonTextures[1] != "toon02.bmp" || m.ToonTextures[2] != "hair.bmp" {
		t.Error("toon", m.ToonTextures)
	}
}

func TestConvertUnknownMorphCategory(t *testing.T) {
	table, err := localize.Load(strings.NewReader("morphs:\n  - {key: weird, name: 変, type: 7}\n"))
	if err != nil {
		t.Fatal(err)
	}
	s := quadScene()
	s.Morphs = []scene.Morph{
		{Name: "plain", Offsets: []scene.Offset{{Vertex: 0, Offset: [3]float32{0, 1, 0}}}},
		{Name: "weird", Offsets: []scene.Offset{{Vertex: 1, Offset: [3]float32{0, 1, 0}}}},
	}
	core, logs := observer.New(zapcore.WarnLevel)
	m, err := Convert(s, &SceneToMMDOption{Localization: table, Logger: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Morphs) != 3 || m.Morphs[2].Name != "変" || m.Morphs[2].Category != mmd.MorphOther {
		t.Fatal("morph with unknown category should be kept", m.Morphs)
	}
	if len(m.Morphs[0].Offsets) != 2 {
		t.Error("base should cover the kept morph", m.Morphs[0].Offsets)
	}
	if len(m.MorphOrder) != 1 || m.MorphOrder[0] != 1 {
		t.Error("only the known morph is displayed", m.MorphOrder)
	}
	if logs.FilterMessage("morph has unknown category").Len() != 1 {
		t.Error("expected warning", logs.All())
	}
}

func TestConvertEyeWithoutEyes(t *testing.T) {
	s := quadScene()
	s.Bones = []scene.Bone{
		{Name: "center", Parent: -1, Tail: -1, IKTarget: -1},
		{Name: "head", Parent: 0, Tail: -1, IKTarget: -1},
		{Name: "eye_L", Parent: 1, Tail: -1, IKTarget: 1},
	}
	for i := range s.Vertices {
		s.Vertices[i].Bone0, s.Vertices[i].Bone1 = "center", ""
	}
	m, err := Convert(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if eye := m.Bones[2]; eye.Type != mmd.BoneRotateLink || eye.IKTarget != 1 {
		t.Error("eye should keep its own target", eye)
	}
}
