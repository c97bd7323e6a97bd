package converter

import (
	"fmt"

	"github.com/DangDinhQuocTrung/pymeshio/geom"
	"github.com/DangDinhQuocTrung/pymeshio/mmd"
	"github.com/DangDinhQuocTrung/pymeshio/scene"
)

func rigidShape(r *scene.RigidBody) (mmd.Shape, error) {
	switch r.Shape {
	case 0:
		return mmd.Sphere{Radius: r.Scale[0]}, nil
	case 1:
		return mmd.Box{Width: r.Scale[0], Height: r.Scale[1], Depth: r.Scale[2]}, nil
	case 2:
		return mmd.Capsule{Radius: r.Scale[0], Height: r.Scale[2]}, nil
	}
	return nil, fmt.Errorf("rigid body %q has unknown shape %d", r.Name, r.Shape)
}

func convertRotation(r [3]float32) mmd.Vector3 {
	return geom.ToTargetRotation(mmd.Vector3{X: r[0], Y: r[1], Z: r[2]})
}

func (c *sceneToMMDState) convertRigidBodies() error {
	for i := range c.src.RigidBodies {
		r := &c.src.RigidBodies[i]
		bone, ok := c.boneIndex[r.Bone]
		if !ok {
			return mmd.ReferenceError{Kind: "rigid body bone", Name: r.Bone}
		}
		shape, err := rigidShape(r)
		if err != nil {
			return err
		}
		if r.Mode < 0 || r.Mode > int(mmd.RigidPhysicsAligned) {
			return fmt.Errorf("rigid body %q has unknown mode %d", r.Name, r.Mode)
		}
		bonePos := c.src.Bones[bone].Pos
		if bone == 0 {
			// anchored to bone 0 all the same
			bone = mmd.NoBone
		}
		rel := [3]float32{r.Location[0] - bonePos[0], r.Location[1] - bonePos[1], r.Location[2] - bonePos[2]}
		c.rigidIndex[r.Name] = len(c.dst.RigidBodies)
		c.dst.RigidBodies = append(c.dst.RigidBodies, &mmd.RigidBody{
			Name:           r.Name,
			Bone:           bone,
			Group:          r.Group,
			Mask:           r.Mask,
			Shape:          shape,
			Pos:            convertVec3(rel),
			Rot:            convertRotation(r.Rotation),
			Mass:           r.Mass,
			LinearDamping:  r.LinearDamping,
			AngularDamping: r.AngularDamping,
			Restitution:    r.Restitution,
			Friction:       r.Friction,
			Mode:           mmd.RigidMode(r.Mode),
		})
	}
	return nil
}

func (c *sceneToMMDState) convertJoints() error {
	for _, j := range c.src.Joints {
		a, ok := c.rigidIndex[j.A]
		if !ok {
			return mmd.ReferenceError{Kind: "joint rigid body", Name: j.A}
		}
		b, ok := c.rigidIndex[j.B]
		if !ok {
			return mmd.ReferenceError{Kind: "joint rigid body", Name: j.B}
		}
		v := func(a [3]float32) mmd.Vector3 { return mmd.Vector3{X: a[0], Y: a[1], Z: a[2]} }
		c.dst.Joints = append(c.dst.Joints, &mmd.Joint{
			Name:       j.Name,
			A:          a,
			B:          b,
			Pos:        convertVec3(j.Location),
			Rot:        convertRotation(j.Rotation),
			MoveMin:    v(j.MoveMin),
			MoveMax:    v(j.MoveMax),
			RotMin:     v(j.RotMin),
			RotMax:     v(j.RotMax),
			SpringMove: v(j.SpringMove),
			SpringRot:  v(j.SpringRot),
		})
	}
	return nil
}
