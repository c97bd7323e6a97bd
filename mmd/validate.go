package mmd

import (
	"fmt"
	"strconv"
)

func checkIndex(kind string, i, n int) error {
	if i < 0 || i >= n {
		return IndexError{Kind: kind, Index: i, Len: n}
	}
	return nil
}

func checkOptionalIndex(kind string, i, n int) error {
	if i == NoBone {
		return nil
	}
	return checkIndex(kind, i, n)
}

// Validate checks every cross reference of the model. Writers assume a
// model that passes.
func (m *Model) Validate() error {
	nv, nb := len(m.Vertexes), len(m.Bones)

	for i, v := range m.Vertexes {
		for _, b := range v.Bones {
			if err := checkOptionalIndex("vertex bone", b, nb); err != nil {
				return fmt.Errorf("vertex %d: %w", i, err)
			}
		}
	}

	for _, f := range m.Faces {
		for _, v := range f.Verts {
			if err := checkIndex("face vertex", v, nv); err != nil {
				return err
			}
		}
	}

	total := 0
	for _, mat := range m.Materials {
		if mat.Count%3 != 0 {
			return fmt.Errorf("material %q: index count %d is not a multiple of 3: %w", mat.Name, mat.Count, ErrIndexOutOfRange)
		}
		if mat.Toon >= ToonSlots {
			return IndexError{Kind: "toon", Index: mat.Toon, Len: ToonSlots}
		}
		total += mat.Count
	}
	if total != len(m.Faces)*3 {
		return fmt.Errorf("materials cover %d indices, model has %d: %w", total, len(m.Faces)*3, ErrIndexOutOfRange)
	}

	for i, b := range m.Bones {
		if b.Parent != -1 && (b.Parent < 0 || b.Parent >= i) {
			return HierarchyError{Bone: b.Name, Index: i, Parent: b.Parent}
		}
		if !b.Type.Valid() {
			return fmt.Errorf("bone %q has unknown type %d", b.Name, b.Type)
		}
		if err := checkOptionalIndex("bone tail", b.Tail, nb); err != nil {
			return fmt.Errorf("bone %q: %w", b.Name, err)
		}
		if err := checkOptionalIndex("bone ik target", b.IKTarget, nb); err != nil {
			return fmt.Errorf("bone %q: %w", b.Name, err)
		}
	}

	for _, ik := range m.IKs {
		if err := checkIndex("ik bone", ik.Bone, nb); err != nil {
			return err
		}
		if err := checkIndex("ik target", ik.Target, nb); err != nil {
			return err
		}
		// every link must be the next ancestor of the previous one
		b := m.Bones[ik.Target].Parent
		for n, l := range ik.Links {
			if b == -1 {
				return ChainError{IK: m.Bones[ik.Bone].Name, Want: len(ik.Links), Got: n}
			}
			if l != b {
				return fmt.Errorf("ik %q: link %d is bone %d, expected ancestor %d: %w", m.Bones[ik.Bone].Name, n, l, b, ErrChainLength)
			}
			b = m.Bones[b].Parent
		}
	}

	base := map[int]bool{}
	for i, morph := range m.Morphs {
		if morph.Category > MorphOther {
			return fmt.Errorf("morph %q has unknown category %d", morph.Name, morph.Category)
		}
		if (morph.Category == MorphBase) != (i == 0) {
			return fmt.Errorf("morph %q: base morph must be first and unique", morph.Name)
		}
		for _, o := range morph.Offsets {
			if err := checkIndex("morph vertex", o.Vertex, nv); err != nil {
				return fmt.Errorf("morph %q: %w", morph.Name, err)
			}
			if i == 0 {
				base[o.Vertex] = true
			} else if !base[o.Vertex] {
				return ReferenceError{Kind: "base morph vertex", Name: strconv.Itoa(o.Vertex)}
			}
		}
	}
	for _, i := range m.MorphOrder {
		if err := checkIndex("morph order", i, len(m.Morphs)); err != nil {
			return err
		}
		if m.Morphs[i].Category == MorphBase {
			return fmt.Errorf("base morph in display order: %w", ErrIndexOutOfRange)
		}
	}

	for _, d := range m.BoneDisplay {
		if err := checkIndex("display bone", d.Bone, nb); err != nil {
			return err
		}
		if err := checkIndex("display group", d.Group, len(m.BoneGroups)); err != nil {
			return err
		}
	}

	for _, r := range m.RigidBodies {
		if err := checkOptionalIndex("rigid body bone", r.Bone, nb); err != nil {
			return fmt.Errorf("rigid body %q: %w", r.Name, err)
		}
		if r.Shape == nil {
			return fmt.Errorf("rigid body %q has no shape", r.Name)
		}
	}
	if len(m.RigidBodies) > 0 && nb == 0 {
		return fmt.Errorf("rigid bodies need at least one bone: %w", ErrIndexOutOfRange)
	}
	for _, j := range m.Joints {
		if err := checkIndex("joint body", j.A, len(m.RigidBodies)); err != nil {
			return fmt.Errorf("joint %q: %w", j.Name, err)
		}
		if err := checkIndex("joint body", j.B, len(m.RigidBodies)); err != nil {
			return fmt.Errorf("joint %q: %w", j.Name, err)
		}
	}
	return nil
}

// .pmd stores vertex and bone references as u16, and a few counts as u8.
const (
	pmdMaxVertices   = 0xFFFF
	pmdMaxBones      = 0xFFFF
	pmdMaxIKs        = 0xFFFF
	pmdMaxIKLinks    = 0xFF
	pmdMaxMorphs     = 0xFFFF
	pmdMaxMorphOrder = 0xFF
	pmdMaxBoneGroups = 0xFE
)

func checkLimit(kind string, n, limit int) error {
	if n > limit {
		return LimitError{Format: FormatPMD, Kind: kind, Count: n, Max: limit}
	}
	return nil
}

// ValidatePMD checks that m fits the fixed field widths of .pmd.
func (m *Model) ValidatePMD() error {
	if err := checkLimit("vertices", len(m.Vertexes), pmdMaxVertices); err != nil {
		return err
	}
	if err := checkLimit("bones", len(m.Bones), pmdMaxBones); err != nil {
		return err
	}
	if err := checkLimit("ik solvers", len(m.IKs), pmdMaxIKs); err != nil {
		return err
	}
	for _, ik := range m.IKs {
		if err := checkLimit("ik links", len(ik.Links), pmdMaxIKLinks); err != nil {
			return fmt.Errorf("ik on bone %d: %w", ik.Bone, err)
		}
	}
	if err := checkLimit("morphs", len(m.Morphs), pmdMaxMorphs); err != nil {
		return err
	}
	if err := checkLimit("displayed morphs", len(m.MorphOrder), pmdMaxMorphOrder); err != nil {
		return err
	}
	return checkLimit("bone groups", len(m.BoneGroups), pmdMaxBoneGroups)
}
