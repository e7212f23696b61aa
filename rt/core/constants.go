package core

// Capacity constants shared between the host-side allocators and the
// kernel code (CPU reference kernels and the WGSL sources in rt/shaders).
// These are the single source of truth; the WGSL files mirror them and
// manager_particles.go asserts the byte sizes at pipeline setup.
const (
	// MaxEmitterCount bounds the emitter constant tables.
	MaxEmitterCount = 1024

	// MaxParticleCount bounds the global particle update buffer. Emitters
	// share this pool; an emitter gets at most its MaxParticleCount slots
	// out of whatever remains.
	MaxParticleCount = 262144

	// ParticleWorkGroupSize is the dispatch granularity of the particle
	// count and update kernels.
	ParticleWorkGroupSize = 64

	// InvalidEmitterIndex marks unallocated slots in the per-particle
	// emitter index table.
	InvalidEmitterIndex = -1
)
