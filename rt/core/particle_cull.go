package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FrameConstants is the per-frame camera input of the instance expander,
// current and previous so the output carries motion vectors.
type FrameConstants struct {
	ViewOriginProjection     mgl32.Mat4
	PrevViewOriginProjection mgl32.Mat4
	CameraPosition           mgl32.Vec3
	PrevCameraPosition       mgl32.Vec3
	CameraRight              mgl32.Vec3
	CameraUp                 mgl32.Vec3
}

// FrameConstantsFrom captures the camera state the kernels need for one
// dispatch.
func FrameConstantsFrom(c *CameraState) FrameConstants {
	right := mgl32.Vec3{c.View.At(0, 0), c.View.At(0, 1), c.View.At(0, 2)}
	up := mgl32.Vec3{c.View.At(1, 0), c.View.At(1, 1), c.View.At(1, 2)}
	return FrameConstants{
		ViewOriginProjection:     c.ViewOriginProjection,
		PrevViewOriginProjection: c.PrevViewOriginProjection,
		CameraPosition:           c.Position,
		PrevCameraPosition:       c.PrevPosition,
		CameraRight:              right,
		CameraUp:                 up,
	}
}

// ParticleVertex is the vertex-stage output contract consumed by the
// deferred shading pass. Tangent, Bitangent and Normal are the raw
// rotation-times-local-frame products; with non-uniform scale in the
// emitter transform they are not orthonormal and must go through
// OrthonormalizeFrame before lighting.
type ParticleVertex struct {
	ClipPosition     mgl32.Vec4
	PrevClipPosition mgl32.Vec4
	RelativePosition mgl32.Vec3 // camera-relative world position
	Tangent          mgl32.Vec3
	Bitangent        mgl32.Vec3
	Normal           mgl32.Vec3
	Color            mgl32.Vec4
	TexCoord         mgl32.Vec2
}

// Discarded reports whether the vertex is the degenerate output of the
// cull path. A non-finite clip position never survives clipping, so the
// rasterizer drops the primitive without any host involvement.
func (v *ParticleVertex) Discarded() bool {
	return math.IsNaN(float64(v.ClipPosition.X()))
}

// Quad geometry expanded per instance: XY-plane unit quad, white vertex
// color, uv origin at the first corner.
var quadCorners = [4]mgl32.Vec2{
	{-0.5, -0.5},
	{0.5, -0.5},
	{-0.5, 0.5},
	{0.5, 0.5},
}

var quadUVs = [4]mgl32.Vec2{
	{0, 0},
	{1, 0},
	{0, 1},
	{1, 1},
}

// pcgHash is a deterministic integer mix. Same seed, same value, every
// frame and every invocation.
func pcgHash(x uint32) uint32 {
	state := x*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func hashToUnitFloat(seed uint32) float32 {
	return float32(pcgHash(seed)) * (1.0 / 4294967296.0)
}

// InstanceJitter derives the stable per-instance offset in [-0.5, 0.5)^3.
// Seeded only by the instance id: jitter is temporally stable, never a
// per-frame flicker.
func InstanceJitter(instanceID uint32) mgl32.Vec3 {
	return mgl32.Vec3{
		hashToUnitFloat(instanceID) - 0.5,
		hashToUnitFloat(instanceID ^ 0x9e3779b9) - 0.5,
		hashToUnitFloat(instanceID ^ 0x85ebca6b) - 0.5,
	}
}

func nanVec4() mgl32.Vec4 {
	n := float32(math.NaN())
	return mgl32.Vec4{n, n, n, n}
}

func mat4Rot3(m mgl32.Mat4) mgl32.Mat3 {
	return mgl32.Mat3{
		m.At(0, 0), m.At(1, 0), m.At(2, 0),
		m.At(0, 1), m.At(1, 1), m.At(2, 1),
		m.At(0, 2), m.At(1, 2), m.At(2, 2),
	}
}

// cameraRelative shifts a transform's translation into camera-relative
// space. The subtraction happens before the transform is applied to any
// vertex, so large world coordinates never reach single-precision math.
func cameraRelative(m mgl32.Mat4, cameraPos mgl32.Vec3) mgl32.Mat4 {
	m.SetCol(3, mgl32.Vec4{
		m.At(0, 3) - cameraPos.X(),
		m.At(1, 3) - cameraPos.Y(),
		m.At(2, 3) - cameraPos.Z(),
		m.At(3, 3),
	})
	return m
}

// ExpandVertex is the per-invocation body of the instance culler: one
// (emitter record, instance id, corner) triple in, one vertex out.
//
// An instance id at or past the alive count is the discard path, not an
// error: the vertex comes back with a NaN clip position and nothing else
// computed. The alive count alone gates the range check; slots inside
// [effective visible count, alive count) are dead-but-allocated and are
// retired by the count kernel on the next frame rather than skipped here.
func ExpandVertex(rec EmitterRecord, instanceID uint32, vertexID int, frame *FrameConstants) ParticleVertex {
	if int32(instanceID) >= rec.Counts.AliveCount {
		return ParticleVertex{
			ClipPosition:     nanVec4(),
			PrevClipPosition: nanVec4(),
		}
	}

	statics := rec.Statics
	dyn := rec.Dynamics

	corner := quadCorners[vertexID]
	jitter := InstanceJitter(instanceID)

	scale := statics.ScaleMin
	local := mgl32.Vec3{corner.X() * scale.X(), corner.Y() * scale.Y(), 0}
	center := jitter

	relM := cameraRelative(dyn.EmitterTransform, frame.CameraPosition)
	prevRelM := cameraRelative(dyn.PrevEmitterTransform, frame.PrevCameraPosition)

	var relPos, prevRelPos mgl32.Vec3
	rot := mat4Rot3(dyn.EmitterTransform)

	if statics.AlignMode == AlignBillboard {
		// Corner offsets in view space so the quad faces the camera; only
		// the particle center goes through the emitter transform.
		offset := frame.CameraRight.Mul(local.X()).Add(frame.CameraUp.Mul(local.Y()))
		relPos = relM.Mul4x1(center.Vec4(1)).Vec3().Add(offset)
		prevRelPos = prevRelM.Mul4x1(center.Vec4(1)).Vec3().Add(offset)
	} else {
		p := center.Add(local)
		relPos = relM.Mul4x1(p.Vec4(1)).Vec3()
		prevRelPos = prevRelM.Mul4x1(p.Vec4(1)).Vec3()
	}

	// Tangent frame: rotation submatrix times the quad's local frame,
	// propagated unnormalized. Non-uniform scale in the transform breaks
	// orthonormality here; consumers re-orthonormalize.
	tangent := rot.Mul3x1(mgl32.Vec3{1, 0, 0})
	normal := rot.Mul3x1(mgl32.Vec3{0, 0, 1})
	bitangent := normal.Cross(tangent)

	return ParticleVertex{
		ClipPosition:     frame.ViewOriginProjection.Mul4x1(relPos.Vec4(1)),
		PrevClipPosition: frame.PrevViewOriginProjection.Mul4x1(prevRelPos.Vec4(1)),
		RelativePosition: relPos,
		Tangent:          tangent,
		Bitangent:        bitangent,
		Normal:           normal,
		Color:            mgl32.Vec4{1, 1, 1, 1},
		TexCoord:         quadUVs[vertexID],
	}
}

// ExpandInstance expands one instance into its four-vertex quad, or the
// degenerate quad on the discard path.
func ExpandInstance(rec EmitterRecord, instanceID uint32, frame *FrameConstants) [4]ParticleVertex {
	var quad [4]ParticleVertex
	for v := 0; v < 4; v++ {
		quad[v] = ExpandVertex(rec, instanceID, v, frame)
	}
	return quad
}

// ExpandEmitter runs the culler over every candidate instance of one
// draw, one logical invocation per instance. out must hold AliveCount
// quads; discarded slots are filled with degenerate quads so downstream
// indices stay aligned with instance ids.
func ExpandEmitter(rec EmitterRecord, instanceCount int, frame *FrameConstants, out [][4]ParticleVertex) {
	Dispatch1D(instanceCount, func(i int) {
		out[i] = ExpandInstance(rec, uint32(i), frame)
	})
}

// OrthonormalizeFrame rebuilds a proper orthonormal basis from the raw
// tangent frame, the step the deferred stage applies before lighting.
func OrthonormalizeFrame(tangent, normal mgl32.Vec3) (t, b, n mgl32.Vec3) {
	n = normal.Normalize()
	// Gram-Schmidt the tangent against the normal.
	t = tangent.Sub(n.Mul(n.Dot(tangent))).Normalize()
	b = n.Cross(t)
	return t, b, n
}
