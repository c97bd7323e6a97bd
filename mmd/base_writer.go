package mmd

import (
	"io"

	"github.com/anaminus/parse"
	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/textenc"
)

// TextEncoding selects how .pmx text fields are stored.
type TextEncoding uint8

const (
	UTF16 TextEncoding = 0
	UTF8  TextEncoding = 1
)

// WriterOptions controls WritePMD and WritePMX. The zero value truncates
// oversized names, writes UTF-16 text and logs nothing.
type WriterOptions struct {
	NamePolicy  textenc.OverflowPolicy
	PMXEncoding TextEncoding
	Logger      *zap.Logger
}

func (o *WriterOptions) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// sink tags I/O failures with the section being written.
type sink struct {
	w       io.Writer
	section string
	n       int64
}

func (s *sink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	if err != nil {
		err = WriteError{Section: s.section, Offset: s.n, Cause: err}
	}
	return n, err
}

type baseWriter struct {
	fw     *parse.BinaryWriter
	sink   *sink
	policy textenc.OverflowPolicy
	log    *zap.Logger
	failed bool
}

func newBaseWriter(w io.Writer, opts *WriterOptions) *baseWriter {
	s := &sink{w: w, section: "header"}
	bw := &baseWriter{fw: parse.NewBinaryWriter(s), sink: s, log: opts.logger()}
	if opts != nil {
		bw.policy = opts.NamePolicy
	}
	return bw
}

// section names the part of the file that following writes belong to. It
// reports whether writing already failed.
func (w *baseWriter) section(name string) (failed bool) {
	w.sink.section = name
	return w.failed
}

func (w *baseWriter) fail(err error) {
	if w.fw.Add(0, err) {
		w.failed = true
	}
}

func (w *baseWriter) number(v interface{}) {
	if !w.failed && w.fw.Number(v) {
		w.failed = true
	}
}

func (w *baseWriter) bytes(b []byte) {
	if !w.failed && w.fw.Bytes(b) {
		w.failed = true
	}
}

func (w *baseWriter) end() error {
	_, err := w.fw.End()
	return err
}

func (w *baseWriter) u8(v uint8)    { w.number(v) }
func (w *baseWriter) u16(v uint16)  { w.number(v) }
func (w *baseWriter) u32(v uint32)  { w.number(v) }
func (w *baseWriter) i32(v int32)   { w.number(v) }
func (w *baseWriter) f32(v float32) { w.number(v) }

func (w *baseWriter) vec2(v Vector2) {
	w.f32(v.X)
	w.f32(v.Y)
}

func (w *baseWriter) vec3(v Vector3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *baseWriter) vec4(v Vector4) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
	w.f32(v.W)
}

// boneRef16 stores -1 as 0xFFFF.
func (w *baseWriter) boneRef16(i int) {
	w.u16(uint16(int16(i)))
}

// fixed writes s as a NUL padded Shift-JIS field. Encoding failures abort
// the write.
func (w *baseWriter) fixed(s string, width int) {
	if w.failed {
		return
	}
	b, truncated, err := textenc.FixedShiftJIS(s, width, w.policy)
	if err != nil {
		w.fail(err)
		return
	}
	if truncated {
		w.log.Warn("name truncated to fit field", zap.String("name", s), zap.Int("width", width), zap.String("section", w.sink.section))
	} else if width > 0 && b[width-1] != 0 {
		w.log.Warn("name fills field without terminator", zap.String("name", s), zap.Int("width", width), zap.String("section", w.sink.section))
	}
	w.bytes(b)
}
