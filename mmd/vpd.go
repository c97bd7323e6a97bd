package mmd

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/DangDinhQuocTrung/pymeshio/textenc"
)

const vpdMagic = "Vocaloid Pose Data file"

// maxVPDSize is the largest pose file ParseVPD accepts.
const maxVPDSize = 16 << 20

// Pose is one bone's pose in MMD space.
type Pose struct {
	Name string
	Pos  Vector3
	Rot  Vector4
}

// PoseData is the content of a .vpd file.
type PoseData struct {
	// Model is the .osm reference, without the extension.
	Model string
	Poses []*Pose
}

var (
	vpdOpen  = regexp.MustCompile(`^([^\s{]+)\{(.*)$`)
	vpdOSM   = regexp.MustCompile(`^(\S+)\.osm;`)
	vpdCount = regexp.MustCompile(`^(\d+);`)
)

// vpdParser walks the lines of one file. It is not reused.
type vpdParser struct {
	lines []string
	pos   int
	data  PoseData
	count int
}

// ParseVPD reads a Shift-JIS .vpd pose file. The pose succeeds only when the
// number of pose blocks equals the declared bone count.
func ParseVPD(r io.Reader) (*PoseData, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxVPDSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxVPDSize {
		return nil, PoseError{Reason: fmt.Sprintf("file exceeds %d bytes", maxVPDSize)}
	}
	return ParseVPDBytes(b)
}

// ParseVPDBytes is ParseVPD over an in-memory file.
func ParseVPDBytes(b []byte) (*PoseData, error) {
	text, err := textenc.DecodeShiftJIS(b)
	if err != nil {
		return nil, PoseError{Reason: err.Error()}
	}
	p := &vpdParser{lines: strings.Split(text, "\n"), count: -1}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return &p.data, nil
}

// next returns the next line without comments and surrounding space.
func (p *vpdParser) next() (string, bool) {
	if p.pos >= len(p.lines) {
		return "", false
	}
	line := p.lines[p.pos]
	p.pos++
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line), true
}

func (p *vpdParser) parse() error {
	header := ""
	for header == "" {
		line, ok := p.next()
		if !ok {
			return PoseError{Reason: "missing header"}
		}
		header = line
	}
	if header != vpdMagic {
		return PoseError{Line: p.pos, Reason: fmt.Sprintf("bad header %q", header)}
	}

	for {
		line, ok := p.next()
		if !ok {
			break
		}
		if line == "" {
			continue
		}
		if m := vpdOpen.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[2])
			if name == "" {
				name = m[1]
			}
			if err := p.parsePose(name); err != nil {
				return err
			}
			continue
		}
		if m := vpdOSM.FindStringSubmatch(line); m != nil {
			p.data.Model = m[1]
			continue
		}
		if m := vpdCount.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return PoseError{Line: p.pos, Reason: err.Error()}
			}
			p.count = n
			continue
		}
	}

	if p.count < 0 {
		return PoseError{Reason: "missing bone count"}
	}
	if p.count != len(p.data.Poses) {
		return PoseError{Reason: fmt.Sprintf("declared %d bones, found %d", p.count, len(p.data.Poses))}
	}
	return nil
}

func (p *vpdParser) floats(n int) ([]float32, error) {
	line, ok := p.next()
	if !ok {
		return nil, PoseError{Reason: "truncated pose block"}
	}
	fields := strings.Split(strings.SplitN(line, ";", 2)[0], ",")
	if len(fields) != n {
		return nil, PoseError{Line: p.pos, Reason: fmt.Sprintf("want %d values, got %d", n, len(fields))}
	}
	v := make([]float32, n)
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, PoseError{Line: p.pos, Reason: err.Error()}
		}
		v[i] = float32(x)
	}
	return v, nil
}

// parsePose reads the position and quaternion lines of a block and converts
// them from the file's right-handed form.
func (p *vpdParser) parsePose(name string) error {
	pos, err := p.floats(3)
	if err != nil {
		return err
	}
	rot, err := p.floats(4)
	if err != nil {
		return err
	}
	p.data.Poses = append(p.data.Poses, &Pose{
		Name: name,
		Pos:  Vector3{X: pos[0], Y: pos[1], Z: -pos[2]},
		Rot:  Vector4{X: -rot[0], Y: -rot[1], Z: rot[2], W: rot[3]},
	})
	if line, _ := p.next(); line != "}" {
		return PoseError{Line: p.pos, Reason: fmt.Sprintf("expected } after bone %q", name)}
	}
	return nil
}

// WriteVPD writes d as a Shift-JIS .vpd file, undoing the conversion
// ParseVPD applies.
func WriteVPD(w io.Writer, d *PoseData) error {
	var sb strings.Builder
	sb.WriteString(vpdMagic + "\r\n\r\n")
	if d.Model != "" {
		fmt.Fprintf(&sb, "%s.osm;\t\t// 親ファイル名\r\n", d.Model)
	}
	fmt.Fprintf(&sb, "%d;\t\t\t\t// 総ポーズボーン数\r\n\r\n", len(d.Poses))
	for i, pose := range d.Poses {
		fmt.Fprintf(&sb, "Bone%d{%s\r\n", i, pose.Name)
		fmt.Fprintf(&sb, "  %f,%f,%f;\t\t\t\t// trans x,y,z\r\n", pose.Pos.X, pose.Pos.Y, -pose.Pos.Z)
		fmt.Fprintf(&sb, "  %f,%f,%f,%f;\t\t// Quaternion x,y,z,w\r\n", -pose.Rot.X, -pose.Rot.Y, pose.Rot.Z, pose.Rot.W)
		sb.WriteString("}\r\n\r\n")
	}
	b, err := textenc.EncodeShiftJIS(sb.String())
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
