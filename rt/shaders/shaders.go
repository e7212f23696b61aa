package shaders

import (
	_ "embed"
)

//go:embed depth_pyramid.wgsl
var DepthPyramidWGSL string

//go:embed particle_count.wgsl
var ParticleCountWGSL string

//go:embed particle_update.wgsl
var ParticleUpdateWGSL string

//go:embed particle_render.wgsl
var ParticleRenderWGSL string
