package geom

// Authoring space is right-handed Z-up. MMD space is left-handed Y-up.
// Swapping Y and Z converts between them; the swap is a reflection, which
// is what flips the handedness.

// ToTargetSpace maps an authoring position, normal or offset to MMD space.
func ToTargetSpace(v Vector3) Vector3 {
	return Vector3{X: v.X, Y: v.Z, Z: v.Y}
}

// FromTargetSpace is the inverse of ToTargetSpace.
func FromTargetSpace(v Vector3) Vector3 {
	return Vector3{X: v.X, Y: v.Z, Z: v.Y}
}

// ToTargetRotation maps authoring Euler angles (radians) to MMD space.
func ToTargetRotation(r Vector3) Vector3 {
	return Vector3{X: -r.X, Y: -r.Z, Z: -r.Y}
}

// SnapZero replaces components within eps of zero by exact zero.
func SnapZero(v Vector3, eps Element) Vector3 {
	snap := func(e Element) Element {
		if e >= -eps && e <= eps {
			return 0
		}
		return e
	}
	return Vector3{X: snap(v.X), Y: snap(v.Y), Z: snap(v.Z)}
}

// YUpToZUp maps a right-handed Y-up vector (glTF) to right-handed Z-up.
func YUpToZUp(v Vector3) Vector3 {
	return Vector3{X: v.X, Y: -v.Z, Z: v.Y}
}
