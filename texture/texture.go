// Package texture copies the images a model references next to the exported
// file, converting the formats the viewer cannot read.
package texture

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/blezek/tga"
	_ "github.com/oov/psd"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/DangDinhQuocTrung/pymeshio/mmd"
)

type Packer struct {
	SrcDir string
	DstDir string
	// Legacy writes BMP instead of PNG and converts PNG toon textures.
	Legacy bool
	// MaxSize limits the larger image side. 0 is unlimited.
	MaxSize int
	Logger  *zap.Logger
}

type packState struct {
	*Packer
	renamed map[string]string
	written []string
}

func (p *Packer) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Pack writes every texture of m to DstDir and rewrites the names in m to
// the written files. Missing sources are logged and left as they are. It
// returns the paths written.
func (p *Packer) Pack(m *mmd.Model) ([]string, error) {
	if err := os.MkdirAll(p.DstDir, 0755); err != nil {
		return nil, err
	}
	s := &packState{Packer: p, renamed: map[string]string{}}
	for _, mat := range m.Materials {
		if mat.Texture == "" {
			continue
		}
		names := strings.Split(mat.Texture, "*")
		for i, name := range names {
			n, err := s.pack(name, false)
			if err != nil {
				return s.written, err
			}
			names[i] = n
		}
		mat.Texture = strings.Join(names, "*")
	}
	for i, name := range m.ToonTextures {
		if name == "" || name == mmd.DefaultToonTexture(i) {
			continue
		}
		n, err := s.pack(name, true)
		if err != nil {
			return s.written, err
		}
		m.ToonTextures[i] = n
	}
	return s.written, nil
}

func isSphere(ext string) bool {
	return ext == ".sph" || ext == ".spa"
}

func (s *packState) pack(name string, toon bool) (string, error) {
	if n, ok := s.renamed[name]; ok {
		return n, nil
	}
	src := filepath.Join(s.SrcDir, name)
	if _, err := os.Stat(src); err != nil {
		s.logger().Warn("texture not found", zap.String("texture", name), zap.Error(err))
		s.renamed[name] = name
		return name, nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	verbatim := isSphere(ext)
	switch ext {
	case ".png":
		verbatim = !(s.Legacy && toon)
	case ".jpg", ".jpeg", ".bmp":
		verbatim = true
	}
	if verbatim && !isSphere(ext) && s.MaxSize > 0 {
		fits, err := s.fits(src)
		if err != nil {
			return "", fmt.Errorf("texture %q: %w", name, err)
		}
		verbatim = fits
	}

	out := name
	var err error
	if verbatim {
		err = copyFile(filepath.Join(s.DstDir, out), src)
	} else {
		outExt := ".png"
		if s.Legacy {
			outExt = ".bmp"
		}
		out = strings.TrimSuffix(name, filepath.Ext(name)) + outExt
		err = s.convert(filepath.Join(s.DstDir, out), src, outExt)
	}
	if err != nil {
		return "", fmt.Errorf("texture %q: %w", name, err)
	}
	s.logger().Debug("texture packed", zap.String("texture", name), zap.String("output", out), zap.Bool("copied", verbatim))
	s.renamed[name] = out
	s.written = append(s.written, filepath.Join(s.DstDir, out))
	return out, nil
}

func (s *packState) fits(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false, err
	}
	return cfg.Width <= s.MaxSize && cfg.Height <= s.MaxSize, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil && strings.ToLower(filepath.Ext(path)) == ".tga" {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return tga.Decode(f)
	}
	return img, err
}

// Scale fits img into a limit x limit square, keeping the aspect ratio.
func Scale(img image.Image, limit int) image.Image {
	rect := img.Bounds()
	w, h := rect.Dx(), rect.Dy()
	if limit <= 0 || (w <= limit && h <= limit) {
		return img
	}
	if w >= h {
		w, h = limit, h*limit/w
	} else {
		w, h = w*limit/h, limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
	return dst
}

func (s *packState) convert(dst, src, ext string) (err error) {
	img, err := decode(src)
	if err != nil {
		return err
	}
	img = Scale(img, s.MaxSize)

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if ext == ".bmp" {
		return bmp.Encode(f, img)
	}
	return png.Encode(f, img)
}

func copyFile(dst, src string) (err error) {
	if filepath.Clean(dst) == filepath.Clean(src) {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
