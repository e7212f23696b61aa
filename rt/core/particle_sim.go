package core

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Per-particle lifecycle states in ParticleState.State.
const (
	ParticleStateNone = uint32(iota)
	ParticleStateAlive
	ParticleStateDead
)

// ParticleState is the GPU-resident per-particle record of the update
// kernel, ping-ponged between frames. Field order matches
// particle_update.wgsl.
type ParticleState struct {
	EmitterTransform mgl32.Mat4
	RelativePosition mgl32.Vec3
	ElapsedTime      float32
	LocalPosition    mgl32.Vec3
	InitialLifetime  float32
	InitialRotation  mgl32.Vec3
	State            uint32
	InitialScale     mgl32.Vec3
	Reserved0        float32
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{lerp(a.X(), b.X(), t), lerp(a.Y(), b.Y(), t), lerp(a.Z(), b.Z(), t)}
}

// spawnPosition samples a deterministic local position inside the
// emitter's spawn volume.
func spawnPosition(statics *ParticleStaticConstants, seed uint32) mgl32.Vec3 {
	r := mgl32.Vec3{
		hashToUnitFloat(seed),
		hashToUnitFloat(seed ^ 0xc2b2ae35),
		hashToUnitFloat(seed ^ 0x27d4eb2f),
	}
	info := statics.SpawnVolumeInfo

	var local mgl32.Vec3
	switch statics.SpawnVolumeType {
	case SpawnVolumeSphere:
		theta := 2 * float32(math.Pi) * r.X()
		cosPhi := r.Y()*2 - 1
		sinPhi := float32(math.Sqrt(float64(1 - cosPhi*cosPhi)))
		radius := info.X() * r.Z()
		local = mgl32.Vec3{
			radius * sinPhi * float32(math.Cos(float64(theta))),
			radius * cosPhi,
			radius * sinPhi * float32(math.Sin(float64(theta))),
		}
	default: // box
		local = mgl32.Vec3{
			(r.X() - 0.5) * info.X(),
			(r.Y() - 0.5) * info.Y(),
			(r.Z() - 0.5) * info.Z(),
		}
	}
	return statics.SpawnVolumeTransform.Mul4x1(local.Vec4(1)).Vec3()
}

// SimulateParticles is the CPU reference of the particle update kernel:
// one invocation per allocated instance slot. Fresh slots inside the
// alive range respawn from the static constants; live slots accumulate
// elapsed time and die when they outlive their initial lifetime. The only
// cross-invocation write is the shared dead counter, which matches the
// kernel's atomic.
//
// states must hold at least the emitter's alive count. Returns nothing;
// deaths land in counts.DeadCount for the next StepCounts.
func SimulateParticles(rec EmitterRecord, states []ParticleState, dt float32) {
	alive := int(rec.Counts.AliveCount)
	if alive > len(states) {
		alive = len(states)
	}

	var dead int32
	statics := rec.Statics
	dyn := rec.Dynamics

	Dispatch1D(alive, func(i int) {
		st := &states[i]
		switch st.State {
		case ParticleStateAlive:
			st.ElapsedTime += dt
			if st.ElapsedTime >= st.InitialLifetime {
				st.State = ParticleStateDead
				atomic.AddInt32(&dead, 1)
				return
			}
			st.RelativePosition = dyn.EmitterTransform.Mul4x1(st.LocalPosition.Vec4(1)).Vec3()
		case ParticleStateDead:
			// Retired slot, reclaimed by the count kernel next frame.
			atomic.AddInt32(&dead, 1)
		default:
			// Fresh spawn.
			seed := uint32(i) ^ uint32(dyn.AllocatedEmitterIndex)<<16
			st.State = ParticleStateAlive
			st.ElapsedTime = 0
			st.InitialLifetime = lerp(statics.LifetimeMin, statics.LifetimeMax, hashToUnitFloat(seed))
			st.InitialRotation = lerpVec3(statics.RotationMin, statics.RotationMax, hashToUnitFloat(seed^0x165667b1))
			st.InitialScale = lerpVec3(statics.ScaleMin, statics.ScaleMax, hashToUnitFloat(seed^0xd3a2646c))
			st.LocalPosition = spawnPosition(statics, seed)
			st.EmitterTransform = dyn.EmitterTransform
			st.RelativePosition = dyn.EmitterTransform.Mul4x1(st.LocalPosition.Vec4(1)).Vec3()
		}
	})

	rec.Counts.DeadCount = dead
}
