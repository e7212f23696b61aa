package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState carries the per-frame camera transforms the particle kernels
// consume: current and previous view/projection, plus the rotation-only
// "view origin" variants used for camera-relative rendering. BeginFrame
// rolls current into previous, so motion vectors see last frame's camera.
type CameraState struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	Fov    float32
	Aspect float32
	Near   float32
	Far    float32

	PrevPosition mgl32.Vec3

	Projection           mgl32.Mat4
	View                 mgl32.Mat4
	ViewOriginProjection mgl32.Mat4

	PrevProjection           mgl32.Mat4
	PrevView                 mgl32.Mat4
	PrevViewOriginProjection mgl32.Mat4
}

func NewCameraState(aspect float32) *CameraState {
	c := &CameraState{
		Position: mgl32.Vec3{0, 2, 20},
		Fov:      mgl32.DegToRad(60),
		Aspect:   aspect,
		Near:     0.1,
		Far:      2000.0,
	}
	c.UpdateMatrices()
	c.BeginFrame()
	return c
}

func (c *CameraState) Forward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

// BeginFrame snapshots the current transforms as the previous frame's.
// Call once per frame, before moving the camera.
func (c *CameraState) BeginFrame() {
	c.PrevPosition = c.Position
	c.PrevProjection = c.Projection
	c.PrevView = c.View
	c.PrevViewOriginProjection = c.ViewOriginProjection
}

// UpdateMatrices recomputes the derived transforms after the host moved
// the camera.
func (c *CameraState) UpdateMatrices() {
	c.Projection = mgl32.Perspective(c.Fov, c.Aspect, c.Near, c.Far)

	forward := c.Forward()
	up := mgl32.Vec3{0, 1, 0}
	c.View = mgl32.LookAtV(c.Position, c.Position.Add(forward), up)

	// Same orientation, translation stripped: geometry is shifted into
	// camera-relative space on the CPU before this matrix applies, which
	// keeps precision at large world coordinates.
	viewOrigin := mgl32.LookAtV(mgl32.Vec3{}, forward, up)
	c.ViewOriginProjection = c.Projection.Mul4(viewOrigin)
}

// ExtractFrustumPlanes pulls the six clip planes out of a view-projection
// matrix (Gribb/Hartmann rows). Order: left, right, bottom, top, near,
// far; normals point inside, normalized.
func ExtractFrustumPlanes(vp mgl32.Mat4) [6]mgl32.Vec4 {
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes := [6]mgl32.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
		r3.Sub(r2), // far
	}
	for i, p := range planes {
		n := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
		if n > 0 {
			planes[i] = p.Mul(1.0 / n)
		}
	}
	return planes
}

// AABBVisible reports whether the box has any overlap with the frustum.
// A box is rejected only if its most-inside corner is behind some plane.
func AABBVisible(aabbMin, aabbMax mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		var p mgl32.Vec3
		for a := 0; a < 3; a++ {
			if plane[a] > 0 {
				p[a] = aabbMax[a]
			} else {
				p[a] = aabbMin[a]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}
