package mmd

import "github.com/DangDinhQuocTrung/pymeshio/textenc"

// Sanitize replaces every rune Shift-JIS cannot encode in the text fields
// .pmd stores, so that WritePMD does not fail with an EncodingError.
func (m *Model) Sanitize(placeholder rune) {
	s := func(p *string) { *p = textenc.Sanitize(*p, placeholder) }
	s(&m.Name)
	s(&m.NameEn)
	s(&m.Comment)
	s(&m.CommentEn)
	for _, mat := range m.Materials {
		s(&mat.Texture)
	}
	for _, b := range m.Bones {
		s(&b.Name)
		s(&b.NameEn)
	}
	for _, morph := range m.Morphs {
		s(&morph.Name)
		s(&morph.NameEn)
	}
	for _, g := range m.BoneGroups {
		s(&g.Name)
		s(&g.NameEn)
	}
	for i := range m.ToonTextures {
		s(&m.ToonTextures[i])
	}
	for _, r := range m.RigidBodies {
		s(&r.Name)
	}
	for _, j := range m.Joints {
		s(&j.Name)
	}
}
