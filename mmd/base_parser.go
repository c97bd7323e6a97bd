package mmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/anaminus/parse"

	"github.com/DangDinhQuocTrung/pymeshio/textenc"
)

// maxPrealloc caps slice capacity taken from counts in the file, so a
// corrupt count fails on EOF instead of on allocation.
const maxPrealloc = 1 << 16

type baseParser struct {
	br     *bufio.Reader
	fr     *parse.BinaryReader
	failed bool
}

func newBaseParser(r io.Reader) *baseParser {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &baseParser{br: br, fr: parse.NewBinaryReader(br)}
}

func (p *baseParser) fail(err error) {
	if p.fr.Add(0, err) {
		p.failed = true
	}
}

func (p *baseParser) number(v interface{}) {
	if !p.failed && p.fr.Number(v) {
		p.failed = true
	}
}

func (p *baseParser) bytes(b []byte) {
	if !p.failed && p.fr.Bytes(b) {
		p.failed = true
	}
}

func (p *baseParser) end() error {
	_, err := p.fr.End()
	return err
}

// more reports whether unread input remains. Older files stop after any of
// the optional trailing sections.
func (p *baseParser) more() bool {
	if p.failed {
		return false
	}
	_, err := p.br.Peek(1)
	return err == nil
}

func (p *baseParser) magic(want string) {
	b := make([]byte, len(want))
	p.bytes(b)
	if !p.failed && string(b) != want {
		p.fail(fmt.Errorf("%w: magic %q", ErrUnsupportedFormat, b))
	}
}

func (p *baseParser) u8() (v uint8) {
	p.number(&v)
	return
}

func (p *baseParser) u16() (v uint16) {
	p.number(&v)
	return
}

func (p *baseParser) u32() (v uint32) {
	p.number(&v)
	return
}

func (p *baseParser) i32() (v int32) {
	p.number(&v)
	return
}

func (p *baseParser) f32() (v float32) {
	p.number(&v)
	return
}

func (p *baseParser) vec2() Vector2 {
	return Vector2{X: p.f32(), Y: p.f32()}
}

func (p *baseParser) vec3() Vector3 {
	return Vector3{X: p.f32(), Y: p.f32(), Z: p.f32()}
}

func (p *baseParser) vec4() Vector4 {
	return Vector4{X: p.f32(), Y: p.f32(), Z: p.f32(), W: p.f32()}
}

// count reads a section length and rejects negative values.
func (p *baseParser) count(n int64) int {
	if n < 0 {
		p.fail(fmt.Errorf("negative count %d", n))
		return 0
	}
	if p.failed {
		return 0
	}
	return int(n)
}

func capacity(n int) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}

// boneRef16 reads a 16 bit bone reference, 0xFFFF being none.
func (p *baseParser) boneRef16() int {
	v := p.u16()
	if v == 0xFFFF {
		return NoBone
	}
	return int(v)
}

// fixed reads a NUL padded Shift-JIS field.
func (p *baseParser) fixed(width int) string {
	b := make([]byte, width)
	p.bytes(b)
	if p.failed {
		return ""
	}
	s, err := textenc.DecodeFixed(b)
	if err != nil {
		p.fail(err)
	}
	return s
}

// Read detects the format from the magic bytes and reads a .pmd or .pmx
// model.
func Read(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, err)
	}
	switch {
	case bytes.HasPrefix(head, []byte("Pmd")):
		return ReadPMD(br)
	case bytes.Equal(head, []byte("PMX ")):
		return ReadPMX(br)
	}
	return nil, fmt.Errorf("%w: magic %q", ErrUnsupportedFormat, head)
}
