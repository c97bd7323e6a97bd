package converter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DangDinhQuocTrung/pymeshio/geom"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
	"github.com/DangDinhQuocTrung/pymeshio/textenc"
)

const snapEpsilon = 1e-5

func (c *sceneToMMDState) convertBones() error {
	for i, b := range c.src.Bones {
		c.boneIndex[b.Name] = i
	}
	for i, b := range c.src.Bones {
		if b.Parent != -1 && (b.Parent < 0 || b.Parent >= i) {
			return mmd.HierarchyError{Bone: b.Name, Index: i, Parent: b.Parent}
		}
		bone := &mmd.Bone{
			Name:     b.Name,
			NameEn:   b.Name,
			Parent:   b.Parent,
			Tail:     b.Tail,
			IKTarget: b.IKTarget,
			Pos:      geom.SnapZero(convertVec3(b.Pos), snapEpsilon),
		}
		typ := b.Type
		if e, ok := c.Localization.Bone(b.Name); ok {
			bone.Name = e.Name
			if e.Type != nil {
				typ = *e.Type
				if typ == int(mmd.BoneRotateLink) {
					if eyes, ok := c.boneIndex[c.EyesBoneName]; ok {
						bone.IKTarget = eyes
					}
				}
			}
		} else {
			c.Logger.Debug("bone name not localized", zap.String("bone", b.Name))
		}
		if typ < 0 || !mmd.BoneType(typ).Valid() {
			return fmt.Errorf("bone %q has unknown type %d", b.Name, typ)
		}
		bone.Type = mmd.BoneType(typ)
		if textenc.Overflows(bone.NameEn, 20) {
			c.Logger.Warn("english bone name too long", zap.String("bone", bone.NameEn))
		}
		c.dst.Bones = append(c.dst.Bones, bone)
	}
	return nil
}

func (c *sceneToMMDState) convertIKs() error {
	bones := c.dst.Bones
	for _, ik := range c.src.IKs {
		target, ok := c.boneIndex[ik.Target]
		if !ok {
			return mmd.ReferenceError{Kind: "ik target", Name: ik.Target}
		}
		effector, ok := c.boneIndex[ik.Effector]
		if !ok {
			return mmd.ReferenceError{Kind: "ik effector", Name: ik.Effector}
		}
		solver := &mmd.IK{
			Bone:       target,
			Target:     effector,
			Iterations: ik.Iterations,
			Weight:     ik.Weight,
		}
		b := bones[effector].Parent
		for n := 0; n < ik.Length; n++ {
			if b == -1 {
				return mmd.ChainError{IK: ik.Target, Want: ik.Length, Got: n}
			}
			solver.Links = append(solver.Links, b)
			b = bones[b].Parent
		}
		c.dst.IKs = append(c.dst.IKs, solver)
	}
	return nil
}

func (c *sceneToMMDState) convertBoneGroups() error {
	for _, g := range c.src.BoneGroups {
		group := &mmd.BoneGroup{Name: g, NameEn: g}
		if e, ok := c.Localization.BoneGroup(g); ok {
			group.Name = e.Name
		}
		c.dst.BoneGroups = append(c.dst.BoneGroups, group)
	}
	for i, b := range c.src.Bones {
		if i == 0 || b.Group == "" {
			continue
		}
		if t := c.dst.Bones[i].Type; t == mmd.BoneIKTip || t == mmd.BoneInvisible {
			continue
		}
		g := c.src.BoneGroupIndex(b.Group)
		if g < 0 {
			return mmd.ReferenceError{Kind: "bone group", Name: b.Group}
		}
		c.dst.BoneDisplay = append(c.dst.BoneDisplay, mmd.BoneDisplay{Bone: i, Group: g})
	}
	return nil
}
