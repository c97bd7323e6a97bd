package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/DangDinhQuocTrung/pymeshio/geom"
)

// LoadGLTF imports a .gltf, .glb or .vrm file.
func LoadGLTF(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := FromGLTF(doc)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

type gltfImporter struct {
	doc *gltf.Document
	s   *Scene

	parent    []int
	world     []*geom.Matrix4
	jointBone map[uint32]int
	// nearest joint at or above each node, -1 if none
	nodeBone []int
	humanoid map[uint32]string

	vertexIndex map[Vertex]int
	groupIndex  map[string]int
	morphIndex  map[string]int
}

// FromGLTF converts a glTF document. Skinned primitives of every mesh node
// are flattened into one vertex list; skin joints become bones.
func FromGLTF(doc *gltf.Document) (*Scene, error) {
	c := &gltfImporter{
		doc:         doc,
		s:           &Scene{},
		jointBone:   map[uint32]int{},
		vertexIndex: map[Vertex]int{},
		groupIndex:  map[string]int{},
		morphIndex:  map[string]int{},
	}
	if len(doc.Scenes) > 0 {
		sc := doc.Scenes[0]
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			sc = doc.Scenes[*doc.Scene]
		}
		c.s.Name = sc.Name
	}
	vrm := findVRM(doc)
	if vrm != nil {
		c.humanoid = vrm.humanoidNodes()
	}
	c.computeWorld()
	c.convertBones()
	for i, m := range doc.Materials {
		c.s.Materials = append(c.s.Materials, c.convertMaterial(i, m))
	}
	for i, n := range doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		if err := c.convertMesh(uint32(i), n); err != nil {
			return nil, fmt.Errorf("gltf: node %q: %w", n.Name, err)
		}
	}
	if vrm != nil {
		vrm.applyMeta(c.s)
	}
	if err := c.s.Check(); err != nil {
		return nil, fmt.Errorf("gltf: %w", err)
	}
	return c.s, nil
}

func zUp(v *geom.Vector3) [3]float32 {
	r := geom.YUpToZUp(*v)
	return r.ToArray()
}

func localMatrix(n *gltf.Node) *geom.Matrix4 {
	var zero [16]float32
	if n.Matrix != zero && geom.Matrix4(n.Matrix) != *geom.NewMatrix4() {
		m := geom.Matrix4(n.Matrix)
		return &m
	}
	r := geom.NewQuaternionFromArray(n.Rotation)
	if *r == (geom.Quaternion{}) {
		r = geom.NewQuaternion(0, 0, 0, 1)
	}
	s := geom.NewVector3FromArray(n.Scale)
	if *s == (geom.Vector3{}) {
		s = geom.NewVector3(1, 1, 1)
	}
	return geom.NewTRSMatrix4(geom.NewVector3FromArray(n.Translation), r, s)
}

func (c *gltfImporter) roots() []int {
	var roots []int
	for i := range c.doc.Nodes {
		if c.parent[i] < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

func (c *gltfImporter) computeWorld() {
	nodes := c.doc.Nodes
	c.parent = make([]int, len(nodes))
	c.world = make([]*geom.Matrix4, len(nodes))
	c.nodeBone = make([]int, len(nodes))
	for i := range c.parent {
		c.parent[i] = -1
		c.nodeBone[i] = -1
	}
	for i, n := range nodes {
		for _, child := range n.Children {
			if int(child) < len(nodes) {
				c.parent[child] = i
			}
		}
	}
	var visit func(i int, parent *geom.Matrix4)
	visit = func(i int, parent *geom.Matrix4) {
		if c.world[i] != nil {
			return
		}
		c.world[i] = parent.Mul(localMatrix(nodes[i]))
		for _, child := range nodes[i].Children {
			if int(child) < len(nodes) {
				visit(int(child), c.world[i])
			}
		}
	}
	for _, r := range c.roots() {
		visit(r, geom.NewMatrix4())
	}
	// cycles are unreachable from any root
	for i := range c.world {
		if c.world[i] == nil {
			c.world[i] = geom.NewMatrix4()
		}
	}
}

// convertBones walks the hierarchy depth first so that parents precede
// their children.
func (c *gltfImporter) convertBones() {
	joints := map[uint32]bool{}
	for _, skin := range c.doc.Skins {
		for _, j := range skin.Joints {
			joints[j] = true
		}
	}
	names := map[string]bool{}
	visited := make([]bool, len(c.doc.Nodes))
	var visit func(i int, parentBone int)
	visit = func(i int, parentBone int) {
		if visited[i] {
			return
		}
		visited[i] = true
		n := c.doc.Nodes[i]
		bone := parentBone
		if joints[uint32(i)] {
			bone = len(c.s.Bones)
			name := n.Name
			if h, ok := c.humanoid[uint32(i)]; ok {
				name = h
			}
			if name == "" || names[name] {
				name = fmt.Sprintf("%s_%d", n.Name, i)
			}
			names[name] = true
			typ := 0
			if parentBone < 0 {
				typ = 1
			}
			c.s.Bones = append(c.s.Bones, Bone{
				Name:     name,
				Parent:   parentBone,
				Tail:     -1,
				Type:     typ,
				IKTarget: -1,
				Pos:      zUp(c.world[i].ApplyTo(&geom.Vector3{})),
			})
			if parentBone >= 0 && c.s.Bones[parentBone].Tail < 0 {
				c.s.Bones[parentBone].Tail = bone
			}
			c.jointBone[uint32(i)] = bone
		}
		c.nodeBone[i] = bone
		for _, child := range n.Children {
			if int(child) < len(c.doc.Nodes) {
				visit(int(child), bone)
			}
		}
	}
	for _, r := range c.roots() {
		visit(r, -1)
	}
}

func materialName(i int, m *gltf.Material) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("material%d", i)
}

func (c *gltfImporter) convertMaterial(i int, m *gltf.Material) Material {
	mat := Material{Name: materialName(i, m)}
	if m.PBRMetallicRoughness != nil {
		col := m.PBRMetallicRoughness.BaseColorFactorOrDefault()
		mat.Diffuse = &[3]float32{col[0], col[1], col[2]}
		mat.Alpha = &col[3]
		if t := m.PBRMetallicRoughness.BaseColorTexture; t != nil && int(t.Index) < len(c.doc.Textures) {
			if src := c.doc.Textures[t.Index].Source; src != nil && int(*src) < len(c.doc.Images) {
				if uri := c.doc.Images[*src].URI; uri != "" && !strings.HasPrefix(uri, "data:") {
					mat.Textures = []string{uri}
				}
			}
		}
	}
	return mat
}

func targetNames(mesh *gltf.Mesh) []string {
	extras, ok := mesh.Extras.(map[string]interface{})
	if !ok {
		return nil
	}
	switch names := extras["targetNames"].(type) {
	case []string:
		return names
	case []interface{}:
		var result []string
		for _, n := range names {
			s, _ := n.(string)
			result = append(result, s)
		}
		return result
	}
	return nil
}

func (c *gltfImporter) boneName(i int) string {
	if i < 0 || i >= len(c.s.Bones) {
		return ""
	}
	return c.s.Bones[i].Name
}

// heaviest returns the slots of the two largest weights, -1 when missing.
func heaviest(w [4]float32) (int, int) {
	a, b := -1, -1
	for i, v := range w {
		if v <= 0 {
			continue
		}
		if a < 0 || v > w[a] {
			a, b = i, a
		} else if b < 0 || v > w[b] {
			b = i
		}
	}
	return a, b
}

func (c *gltfImporter) skinBone(skin *gltf.Skin, joint uint16) string {
	if skin == nil || int(joint) >= len(skin.Joints) {
		return ""
	}
	if b, ok := c.jointBone[skin.Joints[joint]]; ok {
		return c.boneName(b)
	}
	return ""
}

func (c *gltfImporter) convertMesh(node uint32, n *gltf.Node) error {
	doc := c.doc
	if int(*n.Mesh) >= len(doc.Meshes) {
		return fmt.Errorf("mesh %d out of range", *n.Mesh)
	}
	mesh := doc.Meshes[*n.Mesh]
	var skin *gltf.Skin
	if n.Skin != nil && int(*n.Skin) < len(doc.Skins) {
		skin = doc.Skins[*n.Skin]
	}
	mat := c.world[node]
	if skin != nil {
		mat = geom.NewMatrix4()
	}
	rigidBone := c.boneName(c.nodeBone[node])
	if rigidBone == "" && skin == nil {
		rigidBone = c.boneName(0)
	}
	names := targetNames(mesh)

	for _, p := range mesh.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			continue
		}
		a, ok := p.Attributes["POSITION"]
		if !ok {
			continue
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[a], [][3]float32{})
		if err != nil {
			return err
		}
		var normals, texCoords = [][3]float32{}, [][2]float32{}
		if a, ok := p.Attributes["NORMAL"]; ok {
			if normals, err = modeler.ReadNormal(doc, doc.Accessors[a], normals); err != nil {
				return err
			}
		}
		if a, ok := p.Attributes["TEXCOORD_0"]; ok {
			if texCoords, err = modeler.ReadTextureCoord(doc, doc.Accessors[a], texCoords); err != nil {
				return err
			}
		}
		var joints [][4]uint16
		var weights [][4]float32
		if skin != nil {
			ja, jok := p.Attributes["JOINTS_0"]
			wa, wok := p.Attributes["WEIGHTS_0"]
			if jok && wok {
				if joints, err = modeler.ReadJoints(doc, doc.Accessors[ja], joints); err != nil {
					return err
				}
				if weights, err = modeler.ReadWeights(doc, doc.Accessors[wa], weights); err != nil {
					return err
				}
			}
		}

		remap := make([]int, len(pos))
		for i := range pos {
			v := Vertex{Bone0: rigidBone, Weight: 1}
			v.Pos = zUp(mat.ApplyTo(geom.NewVector3FromArray(pos[i])))
			if i < len(normals) {
				v.Normal = zUp(mat.ApplyToDirection(geom.NewVector3FromArray(normals[i])).Normalize())
			}
			if i < len(texCoords) {
				v.UV = [2]float32{texCoords[i][0], 1 - texCoords[i][1]}
			}
			if i < len(joints) && i < len(weights) {
				if a, b := heaviest(weights[i]); a >= 0 {
					v.Bone0 = c.skinBone(skin, joints[i][a])
					v.Bone1 = ""
					if b >= 0 {
						v.Bone1 = c.skinBone(skin, joints[i][b])
						v.Weight = weights[i][a] / (weights[i][a] + weights[i][b])
					}
				}
			}
			index, ok := c.vertexIndex[v]
			if !ok {
				index = len(c.s.Vertices)
				c.vertexIndex[v] = index
				c.s.Vertices = append(c.s.Vertices, v)
			}
			remap[i] = index
		}

		var indices []uint32
		if p.Indices != nil {
			if indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], indices); err != nil {
				return err
			}
		} else {
			for i := range pos {
				indices = append(indices, uint32(i))
			}
		}
		group := c.faceGroup(p.Material)
		for _, i := range indices {
			if int(i) >= len(remap) {
				return fmt.Errorf("index %d out of range", i)
			}
			group.Indices = append(group.Indices, remap[i])
		}

		for t, target := range p.Targets {
			a, ok := target["POSITION"]
			if !ok {
				continue
			}
			offsets, err := modeler.ReadPosition(doc, doc.Accessors[a], [][3]float32{})
			if err != nil {
				return err
			}
			name := fmt.Sprintf("morph%d", t)
			if t < len(names) && names[t] != "" {
				name = names[t]
			}
			c.addMorph(name, remap, offsets, mat)
		}
	}
	return nil
}

func (c *gltfImporter) faceGroup(material *uint32) *FaceGroup {
	name := ""
	if material != nil && int(*material) < len(c.doc.Materials) {
		name = materialName(int(*material), c.doc.Materials[*material])
	}
	i, ok := c.groupIndex[name]
	if !ok {
		i = len(c.s.FaceGroups)
		c.groupIndex[name] = i
		c.s.FaceGroups = append(c.s.FaceGroups, FaceGroup{Material: name})
	}
	return &c.s.FaceGroups[i]
}

func (c *gltfImporter) addMorph(name string, remap []int, offsets [][3]float32, mat *geom.Matrix4) {
	i, ok := c.morphIndex[name]
	if !ok {
		i = len(c.s.Morphs)
		c.morphIndex[name] = i
		c.s.Morphs = append(c.s.Morphs, Morph{Name: name})
	}
	m := &c.s.Morphs[i]
	seen := map[int]bool{}
	for _, o := range m.Offsets {
		seen[o.Vertex] = true
	}
	for v, off := range offsets {
		if v >= len(remap) || off == [3]float32{} || seen[remap[v]] {
			continue
		}
		seen[remap[v]] = true
		m.Offsets = append(m.Offsets, Offset{Vertex: remap[v], Offset: zUp(mat.ApplyToDirection(geom.NewVector3FromArray(off)))})
	}
}
