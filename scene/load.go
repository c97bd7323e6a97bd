package scene

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// LoadYAML reads a scene description.
func LoadYAML(r io.Reader) (*Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var s Scene
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	return &s, nil
}

func LoadYAMLFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

// SaveYAML writes s in the format LoadYAML reads.
func SaveYAML(w io.Writer, s *Scene) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Open loads a scene, choosing the loader by file extension.
func Open(path string) (*Scene, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAMLFile(path)
	case ".gltf", ".glb", ".vrm":
		return LoadGLTF(path)
	}
	return nil, fmt.Errorf("scene: unsupported file %q", path)
}
