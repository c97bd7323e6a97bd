package texture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DangDinhQuocTrung/pymeshio/mmd"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func imageSize(t *testing.T, path string) (int, int, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	return cfg.Width, cfg.Height, format
}

func texturedModel() *mmd.Model {
	m := mmd.NewModel()
	m.Materials = []*mmd.Material{
		{Name: "body", Texture: "body.png*shine.sph"},
		{Name: "face", Texture: "body.png"},
	}
	m.ToonTextures[0] = "skin.png"
	return m
}

func TestPackCopy(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(src, "body.png"), 8, 4)
	writePNG(t, filepath.Join(src, "skin.png"), 4, 4)
	if err := os.WriteFile(filepath.Join(src, "shine.sph"), []byte("BM sphere"), 0644); err != nil {
		t.Fatal(err)
	}

	m := texturedModel()
	written, err := (&Packer{SrcDir: src, DstDir: dst}).Pack(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 3 {
		t.Error("written", written)
	}
	if m.Materials[0].Texture != "body.png*shine.sph" || m.ToonTextures[0] != "skin.png" {
		t.Error("names should be unchanged", m.Materials[0].Texture, m.ToonTextures[0])
	}
	if b, err := os.ReadFile(filepath.Join(dst, "shine.sph")); err != nil || string(b) != "BM sphere" {
		t.Error("sphere map not copied", err)
	}
}

func TestPackLegacy(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(src, "body.png"), 8, 4)
	writePNG(t, filepath.Join(src, "skin.png"), 4, 4)

	m := texturedModel()
	m.Materials = m.Materials[1:]
	_, err := (&Packer{SrcDir: src, DstDir: dst, Legacy: true, MaxSize: 4}).Pack(m)
	if err != nil {
		t.Fatal(err)
	}
	if m.Materials[0].Texture != "body.bmp" {
		t.Error("oversized texture should be converted", m.Materials[0].Texture)
	}
	if w, h, format := imageSize(t, filepath.Join(dst, "body.bmp")); w != 4 || h != 2 || format != "bmp" {
		t.Error("scaled texture", w, h, format)
	}
	if m.ToonTextures[0] != "skin.bmp" {
		t.Error("toon texture should be converted", m.ToonTextures[0])
	}
}

func TestPackMissing(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m := mmd.NewModel()
	m.Materials = []*mmd.Material{{Texture: "missing.png"}}
	written, err := (&Packer{SrcDir: t.TempDir(), DstDir: t.TempDir(), Logger: zap.New(core)}).Pack(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 0 || m.Materials[0].Texture != "missing.png" {
		t.Error("unexpected output", written, m.Materials[0].Texture)
	}
	if logs.FilterMessage("texture not found").Len() != 1 {
		t.Error("expected warning", logs.All())
	}
}

func TestScale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	if b := Scale(img, 10).Bounds(); b.Dx() != 10 || b.Dy() != 5 {
		t.Error("scale", b)
	}
	if Scale(img, 0) != image.Image(img) {
		t.Error("unlimited scale should keep the image")
	}
	if b := Scale(image.NewRGBA(image.Rect(0, 0, 1, 300)), 30).Bounds(); b.Dx() != 1 || b.Dy() != 30 {
		t.Error("scale tall", b)
	}
}
