// Package localize maps internal bone, morph and bone group names to the
// Japanese display names MMD expects.
//
// A Table is read-only once built and may be shared between exports.
package localize

import (
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed englishmap.yaml
var defaultTable []byte

// Entry is one row of the table. English is the internal name the entry was
// looked up with. Type is the bone type or morph category when the table
// fixes one.
type Entry struct {
	Name    string
	English string
	Type    *int
}

// HasType reports whether the entry carries a type code equal to t.
func (e Entry) HasType(t int) bool {
	return e.Type != nil && *e.Type == t
}

type row struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	Type *int   `yaml:"type"`
}

type file struct {
	Bones  []row `yaml:"bones"`
	Morphs []row `yaml:"morphs"`
	Groups []row `yaml:"groups"`
}

// Table holds the three lookup maps.
type Table struct {
	bones  map[string]Entry
	morphs map[string]Entry
	groups map[string]Entry
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// Default returns the built-in table. It is parsed on first use.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := parse(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("localize: broken built-in table: %v", err))
		}
		defaultTbl = t
	})
	return defaultTbl
}

// Empty returns a table with no entries, so every lookup falls back to the
// internal name.
func Empty() *Table {
	return &Table{bones: map[string]Entry{}, morphs: map[string]Entry{}, groups: map[string]Entry{}}
}

// Load reads a table in the same YAML layout as the built-in one.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("localize: %w", err)
	}
	t := Empty()
	for _, section := range []struct {
		rows []row
		dst  map[string]Entry
	}{{f.Bones, t.bones}, {f.Morphs, t.morphs}, {f.Groups, t.groups}} {
		for _, r := range section.rows {
			if r.Key == "" {
				return nil, fmt.Errorf("localize: entry %q has no key", r.Name)
			}
			section.dst[r.Key] = Entry{Name: r.Name, English: r.Key, Type: r.Type}
		}
	}
	return t, nil
}

// Merge returns a new table holding the entries of t overridden by other.
func (t *Table) Merge(other *Table) *Table {
	m := Empty()
	for _, src := range []*Table{t, other} {
		if src == nil {
			continue
		}
		for k, v := range src.bones {
			m.bones[k] = v
		}
		for k, v := range src.morphs {
			m.morphs[k] = v
		}
		for k, v := range src.groups {
			m.groups[k] = v
		}
	}
	return m
}

// Bone looks up a bone name.
func (t *Table) Bone(name string) (Entry, bool) {
	e, ok := t.bones[name]
	return e, ok
}

// Morph looks up a morph name.
func (t *Table) Morph(name string) (Entry, bool) {
	e, ok := t.morphs[name]
	return e, ok
}

// BoneGroup looks up a bone group name.
func (t *Table) BoneGroup(name string) (Entry, bool) {
	e, ok := t.groups[name]
	return e, ok
}

// Len returns the number of bone, morph and group entries.
func (t *Table) Len() (bones, morphs, groups int) {
	return len(t.bones), len(t.morphs), len(t.groups)
}
