package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Export.EyesBone != "eyes" || cfg.Export.NamePolicy != "truncate" || !cfg.Textures.Enabled {
		t.Error("unexpected defaults", cfg)
	}
	if got, err := Load(""); err != nil || *got != *cfg {
		t.Error("empty path should give defaults", got, err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmdexport.yaml")
	src := "export:\n  format: pmd\n  name_policy: reject\ntextures:\n  max_size: 1024\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Export.Format != "pmd" || cfg.Export.NamePolicy != "reject" || cfg.Textures.MaxSize != 1024 {
		t.Error("file values", cfg)
	}
	// keys missing from the file keep their defaults
	if cfg.Export.PMXEncoding != "utf16" || cfg.Logging.Level != "info" || !cfg.Textures.Enabled {
		t.Error("defaults lost", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	for i, src := range []string{
		"export:\n  format: obj\n",
		"export:\n  pmx_encoding: latin1\n",
		"export:\n  placeholder: ab\n",
		"exports: {}\n",
	} {
		path := filepath.Join(dir, "c.yaml")
		if err := os.WriteFile(path, []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error(i, "expected error")
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected missing file error")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Logging.File = "export.log"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *again != *cfg {
		t.Error("round trip", again)
	}
}
