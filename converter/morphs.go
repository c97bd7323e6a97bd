package converter

import (
	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/mmd"
)

// BaseMorphName names the synthesized base morph.
const BaseMorphName = "base"

func (c *sceneToMMDState) convertMorphs() error {
	if len(c.src.Morphs) == 0 {
		return nil
	}
	nv := len(c.dst.Vertexes)
	var base *mmd.Morph
	var morphs []*mmd.Morph
	hidden := map[*mmd.Morph]bool{}
	for _, m := range c.src.Morphs {
		morph := &mmd.Morph{Name: m.Name, NameEn: m.Name, Category: mmd.MorphOther}
		if e, ok := c.Localization.Morph(m.Name); ok {
			morph.Name = e.Name
			if e.Type != nil {
				if *e.Type < 0 || *e.Type > int(mmd.MorphOther) {
					// stored as other, kept out of the display list
					c.Logger.Warn("morph has unknown category", zap.String("morph", m.Name), zap.Int("category", *e.Type))
					hidden[morph] = true
				} else {
					morph.Category = mmd.MorphCategory(*e.Type)
				}
			}
		} else {
			c.Logger.Debug("morph name not localized", zap.String("morph", m.Name))
		}
		for _, o := range m.Offsets {
			if o.Vertex < 0 || o.Vertex >= nv {
				return mmd.IndexError{Kind: "morph vertex", Index: o.Vertex, Len: nv}
			}
			morph.Offsets = append(morph.Offsets, mmd.MorphOffset{Vertex: o.Vertex, Offset: convertVec3(o.Offset)})
		}
		if morph.Category == mmd.MorphBase {
			if base == nil {
				base = morph
				continue
			}
			c.Logger.Warn("duplicate base morph", zap.String("morph", m.Name))
			morph.Category = mmd.MorphOther
		}
		morphs = append(morphs, morph)
	}
	if base == nil {
		base = &mmd.Morph{Name: BaseMorphName, NameEn: BaseMorphName, Category: mmd.MorphBase}
	}

	// the base morph lists every vertex any other morph moves
	inBase := map[int]bool{}
	for _, o := range base.Offsets {
		inBase[o.Vertex] = true
	}
	for _, m := range morphs {
		for _, o := range m.Offsets {
			if !inBase[o.Vertex] {
				inBase[o.Vertex] = true
				base.Offsets = append(base.Offsets, mmd.MorphOffset{Vertex: o.Vertex})
			}
		}
	}

	c.dst.Morphs = append([]*mmd.Morph{base}, morphs...)
	for _, cat := range mmd.DisplayCategories {
		for i, m := range c.dst.Morphs {
			if m.Category == cat && !hidden[m] {
				c.dst.MorphOrder = append(c.dst.MorphOrder, i)
			}
		}
	}
	return nil
}
