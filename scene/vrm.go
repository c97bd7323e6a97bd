package scene

// https://github.com/vrm-c/vrm-specification/blob/master/specification/0.0/README.md

import (
	"encoding/json"
	"fmt"

	"github.com/qmuntal/gltf"
)

const VRMExtensionName = "VRM"

func init() {
	gltf.RegisterExtension(VRMExtensionName, unmarshalVRM)
}

type VRMMeta struct {
	Title   string `json:"title"`
	Version string `json:"version"`
	Author  string `json:"author"`
}

type VRMHumanBone struct {
	Bone string `json:"bone"`
	Node int    `json:"node"`
}

type VRMHumanoid struct {
	Bones []*VRMHumanBone `json:"humanBones"`
}

// VRM is the part of the VRM 0.x extension the importer reads.
type VRM struct {
	Meta     VRMMeta     `json:"meta"`
	Humanoid VRMHumanoid `json:"humanoid"`
}

func unmarshalVRM(data []byte) (interface{}, error) {
	var ext VRM
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

func findVRM(doc *gltf.Document) *VRM {
	if ext, ok := doc.Extensions[VRMExtensionName].(*VRM); ok {
		return ext
	}
	return nil
}

// humanoidBoneNames maps VRM humanoid bones to the internal names the
// localization table knows.
var humanoidBoneNames = map[string]string{
	"hips":  "lower body",
	"spine": "upper body",
	"neck":  "neck",
	"head":  "head",
}

func init() {
	for _, side := range []struct{ vrm, key string }{{"left", "_L"}, {"right", "_R"}} {
		for vrm, key := range map[string]string{
			"Eye":      "eye",
			"Shoulder": "shoulder",
			"UpperArm": "arm",
			"LowerArm": "elbow",
			"Hand":     "wrist",
			"UpperLeg": "leg",
			"LowerLeg": "knee",
			"Foot":     "ankle",
			"Toes":     "toe",

			"ThumbIntermediate":  "thumb1",
			"ThumbDistal":        "thumb2",
			"IndexProximal":      "fore1",
			"IndexIntermediate":  "fore2",
			"IndexDistal":        "fore3",
			"MiddleProximal":     "middle1",
			"MiddleIntermediate": "middle2",
			"MiddleDistal":       "middle3",
			"RingProximal":       "third1",
			"RingIntermediate":   "third2",
			"RingDistal":         "third3",
			"LittleProximal":     "little1",
			"LittleIntermediate": "little2",
			"LittleDistal":       "little3",
		} {
			humanoidBoneNames[side.vrm+vrm] = key + side.key
		}
	}
}

// humanoidNodes returns the internal bone name of every humanoid node.
func (v *VRM) humanoidNodes() map[uint32]string {
	names := map[uint32]string{}
	for _, b := range v.Humanoid.Bones {
		if name, ok := humanoidBoneNames[b.Bone]; ok && b.Node >= 0 {
			names[uint32(b.Node)] = name
		}
	}
	return names
}

func (v *VRM) applyMeta(s *Scene) {
	if v.Meta.Title != "" {
		s.ModelName = v.Meta.Title
	}
	if v.Meta.Author != "" {
		s.Comment = fmt.Sprintf("%s\nauthor: %s\n", v.Meta.Title, v.Meta.Author)
		s.EnglishComment = s.Comment
	}
}
