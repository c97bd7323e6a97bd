package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DangDinhQuocTrung/pymeshio/internal/config"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
)

const sceneYAML = `
name: quad
vertices:
  - {pos: [0, 0, 0], normal: [0, 0, 1], uv: [0, 0], bone0: center, weight: 1}
  - {pos: [1, 0, 0], normal: [0, 0, 1], uv: [1, 0], bone0: center, weight: 1}
  - {pos: [1, 1, 0], normal: [0, 0, 1], uv: [1, 1], bone0: center, weight: 1}
face_groups:
  - {material: skin, indices: [0, 1, 2]}
materials:
  - {name: skin, textures: [missing.png]}
bones:
  - {name: center, type: 1}
morphs:
  - name: blink
    offsets: [{vertex: 2, offset: [0, 0, 0.1]}]
`

func TestDefaultOutputFile(t *testing.T) {
	if got := defaultOutputFile("dir/model.yaml", false); got != "dir/model.pmx" {
		t.Error(got)
	}
	if got := defaultOutputFile("model.glb", true); got != "model.pmd" {
		t.Error(got)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "quad.yaml")
	if err := os.WriteFile(input, []byte(sceneYAML), 0644); err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{".pmx", ".pmd"} {
		output := filepath.Join(dir, "quad"+ext)
		if err := export(config.Default(), input, output); err != nil {
			t.Fatal(ext, err)
		}
		m, err := mmd.LoadFile(output)
		if err != nil {
			t.Fatal(ext, err)
		}
		if m.Bones[0].Name != "センター" || len(m.Morphs) != 2 || m.Morphs[1].Name != "まばたき" {
			t.Error(ext, "unexpected model", m.Bones[0].Name, len(m.Morphs))
		}
		if err := inspect(output); err != nil {
			t.Error(ext, err)
		}
	}
}

func TestPose(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "pose.vpd")
	src := "Vocaloid Pose Data file\r\n\r\nquad.osm;\r\n1;\r\n\r\nBone0{center\r\n  0,1,0;\r\n  0,0,0,1;\r\n}\r\n"
	if err := os.WriteFile(input, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	out := filepath.Join(dir, "out.vpd")
	if err := pose(input, out, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "center\tpos=(0, 1, -0)") && !strings.Contains(buf.String(), "center\tpos=(0, 1, 0)") {
		t.Error("unexpected listing", buf.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Error(err)
	}
}

func TestLoadLocalization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	if err := os.WriteFile(path, []byte("bones:\n  - {key: center, name: 中心}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := loadLocalization(path)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := table.Bone("center"); !ok || e.Name != "中心" {
		t.Error("user entry should override", e)
	}
	if e, ok := table.Bone("head"); !ok || e.Name != "頭" {
		t.Error("built-in entry should remain", e)
	}
	if _, err := loadLocalization(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
