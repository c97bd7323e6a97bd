package localize

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	tbl := Default()
	if tbl != Default() {
		t.Error("Default should be shared")
	}

	e, ok := tbl.Bone("center")
	if !ok || e.Name != "センター" || e.English != "center" || !e.HasType(1) {
		t.Error("center", e, ok)
	}
	e, ok = tbl.Bone("neck")
	if !ok || e.Type != nil {
		t.Error("neck should have no type", e)
	}
	if e, _ := tbl.Bone("eye_L"); !e.HasType(5) {
		t.Error("eye_L should be the eye sentinel type")
	}
	if e, ok := tbl.Morph("blink"); !ok || e.Name != "まばたき" || !e.HasType(2) {
		t.Error("blink", e)
	}
	if e, ok := tbl.BoneGroup("IK"); !ok || e.Name != "ＩＫ" {
		t.Error("IK group", e)
	}
	if _, ok := tbl.Bone("no such bone"); ok {
		t.Error("lookup miss expected")
	}
}

func TestLoadAndMerge(t *testing.T) {
	user, err := Load(strings.NewReader(`
bones:
  - {key: center, name: 中心, type: 0}
  - {key: tail, name: しっぽ}
`))
	if err != nil {
		t.Fatal(err)
	}
	m := Default().Merge(user)
	if e, _ := m.Bone("center"); e.Name != "中心" || !e.HasType(0) {
		t.Error("override failed", e)
	}
	if _, ok := m.Bone("tail"); !ok {
		t.Error("merged entry missing")
	}
	if _, ok := m.Bone("neck"); !ok {
		t.Error("default entry missing")
	}
	if e, _ := Default().Bone("center"); e.Name != "センター" {
		t.Error("Merge must not modify the receiver")
	}

	if _, err := Load(strings.NewReader("bones:\n  - {name: x}\n")); err == nil {
		t.Error("entry without key should fail")
	}
}
