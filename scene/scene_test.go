package scene

import (
	"bytes"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const quadYAML = `
name: quad
vertices:
  - {pos: [0, 0, 0], normal: [0, 0, 1], uv: [0, 0], bone0: root, weight: 1}
  - {pos: [1, 0, 0], normal: [0, 0, 1], uv: [1, 0], bone0: root, weight: 1}
  - {pos: [1, 1, 0], normal: [0, 0, 1], uv: [1, 1], bone0: arm, bone1: root, weight: 0.25}
  - {pos: [0, 1, 0], normal: [0, 0, 1], uv: [0, 1], bone0: arm, weight: 1}
face_groups:
  - {material: skin, indices: [0, 1, 2, 0, 2, 3]}
materials:
  - name: skin
    diffuse: [1, 0.5, 0.5]
    textures: ['C:\tex\face.png', 'spheres/hair.sph']
bones:
  - {name: root, tail: 1, type: 1}
  - {name: arm, parent: 0, pos: [0, 1, 0], group: Arms}
bone_groups: [Arms]
toon:
  textures: [toon01.bmp]
`

func TestLoadYAML(t *testing.T) {
	s, err := LoadYAML(strings.NewReader(quadYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Vertices) != 4 || len(s.FaceGroups) != 1 || len(s.Bones) != 2 {
		t.Fatal("unexpected scene", s)
	}
	if b := s.Bones[0]; b.Parent != -1 || b.Tail != 1 || b.IKTarget != -1 {
		t.Error("bone index defaults", b)
	}
	if b := s.Bones[1]; b.Parent != 0 || b.Tail != -1 || b.Group != "Arms" {
		t.Error("bone", b)
	}
	if s.Vertices[2].Bone1 != "root" || s.Vertices[2].Weight != 0.25 {
		t.Error("vertex", s.Vertices[2])
	}

	m, ok := s.FindMaterial("skin")
	if !ok {
		t.Fatal("material not found")
	}
	if m.DiffuseOrDefault() != [3]float32{1, 0.5, 0.5} || m.AlphaOrDefault() != 1 || m.HardnessOrDefault() != 0 {
		t.Error("material defaults", m)
	}
	if names := m.TextureNames(); len(names) != 2 || names[0] != "face.png" || names[1] != "hair.sph" {
		t.Error("texture names", names)
	}
	if _, ok := s.FindMaterial("missing"); ok {
		t.Error("unexpected material")
	}
	if toon, ok := s.FindToon(); !ok || toon.Textures[0] != "toon01.bmp" {
		t.Error("toon", toon)
	}

	name, comment, english := s.Metadata()
	if name != DefaultModelName || comment != DefaultComment || english != DefaultEnglishComment {
		t.Error("metadata defaults", name, comment, english)
	}
}

func TestLoadYAMLErrors(t *testing.T) {
	for _, src := range []string{
		"name: x\nunknown_key: 1\n",
		"bones:\n  - {parent: -1}\n",
		"bones:\n  - {name: a, group: nowhere}\n",
		"rigid_bodies:\n  - {name: r}\n",
		"joints:\n  - {name: j, a: r}\n",
		"morphs:\n  - {offsets: []}\n",
	} {
		if _, err := LoadYAML(strings.NewReader(src)); err == nil {
			t.Errorf("%q: expected error", src)
		}
	}
}

func TestSaveYAML(t *testing.T) {
	s, err := LoadYAML(strings.NewReader(quadYAML))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := SaveYAML(&buf, s); err != nil {
		t.Fatal(err)
	}
	again, err := LoadYAML(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Vertices) != 4 || again.Bones[1].Parent != 0 || again.Bones[0].Parent != -1 {
		t.Error("unexpected scene", again)
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open("model.fbx"); err == nil {
		t.Error("expected error")
	}
}

func TestFromGLTF(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	joints := modeler.WriteJoints(doc, [][4]uint16{{0, 0, 0, 0}, {0, 0, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}})
	weights := modeler.WriteWeights(doc, [][4]float32{{1, 0, 0, 0}, {1, 0, 0, 0}, {0.75, 0.25, 0, 0}, {1, 0, 0, 0}})
	indices := modeler.WriteIndices(doc, []uint32{0, 1, 2, 0, 2, 3})
	morph := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {0, 0, 0}, {0, 1, 0}, {0, 0, 0}})

	doc.Materials = []*gltf.Material{{
		Name:                 "skin",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 0, 0, 0.5}},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]uint32{
				"POSITION":   pos,
				"NORMAL":     nrm,
				"TEXCOORD_0": uv,
				"JOINTS_0":   joints,
				"WEIGHTS_0":  weights,
			},
			Indices:  gltf.Index(indices),
			Material: gltf.Index(0),
			Targets:  []map[string]uint32{{"POSITION": morph}},
		}},
		Extras: map[string]interface{}{"targetNames": []string{"smile"}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "body", Mesh: gltf.Index(0), Skin: gltf.Index(0)},
		{Name: "hips", Translation: [3]float32{0, 1, 0}, Children: []uint32{2}},
		{Name: "spine", Translation: [3]float32{0, 0.5, 0}},
	}
	doc.Skins = []*gltf.Skin{{Joints: []uint32{1, 2}}}
	doc.Scenes = []*gltf.Scene{{Name: "avatar", Nodes: []uint32{0, 1}}}

	s, err := FromGLTF(doc)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "avatar" {
		t.Error("name", s.Name)
	}
	if len(s.Bones) != 2 {
		t.Fatal("bones", s.Bones)
	}
	hips, spine := s.Bones[0], s.Bones[1]
	if hips.Name != "hips" || hips.Parent != -1 || hips.Tail != 1 || hips.Type != 1 {
		t.Error("hips", hips)
	}
	if spine.Parent != 0 || spine.Pos != [3]float32{0, 0, 1.5} {
		t.Error("spine", spine)
	}

	if len(s.Vertices) != 4 {
		t.Fatal("vertices", len(s.Vertices))
	}
	// Y-up (1,1,0) becomes Z-up (1,0,1)
	v := s.Vertices[2]
	if v.Pos != [3]float32{1, 0, 1} || v.Normal != [3]float32{0, -1, 0} || v.UV != [2]float32{1, 0} {
		t.Error("vertex", v)
	}
	if v.Bone0 != "spine" || v.Bone1 != "hips" || v.Weight != 0.75 {
		t.Error("vertex weights", v)
	}

	if len(s.FaceGroups) != 1 || s.FaceGroups[0].Material != "skin" || len(s.FaceGroups[0].Indices) != 6 {
		t.Error("face groups", s.FaceGroups)
	}
	m, _ := s.FindMaterial("skin")
	if m.DiffuseOrDefault() != [3]float32{1, 0, 0} || m.AlphaOrDefault() != 0.5 {
		t.Error("material", m)
	}

	if len(s.Morphs) != 1 || s.Morphs[0].Name != "smile" || len(s.Morphs[0].Offsets) != 1 {
		t.Fatal("morphs", s.Morphs)
	}
	if o := s.Morphs[0].Offsets[0]; o.Vertex != 2 || o.Offset != [3]float32{0, 0, 1} {
		t.Error("offset", o)
	}
}

func TestHeaviest(t *testing.T) {
	for _, c := range []struct {
		w    [4]float32
		a, b int
	}{
		{[4]float32{1, 0, 0, 0}, 0, -1},
		{[4]float32{0.2, 0.5, 0.3, 0}, 1, 2},
		{[4]float32{0.1, 0.2, 0.3, 0.4}, 3, 2},
		{[4]float32{}, -1, -1},
	} {
		if a, b := heaviest(c.w); a != c.a || b != c.b {
			t.Error(c.w, a, b)
		}
	}
}
