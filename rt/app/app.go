package app

import (
	"encoding/binary"
	"math"

	helio "github.com/helio3d/helio"
	"github.com/helio3d/helio/rt/core"
	"github.com/helio3d/helio/rt/gpu"
	"github.com/helio3d/helio/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// App is the demo host: device setup, a synthetic depth source for the
// pyramid, the particle pipeline, and the per-frame loop. Resource
// binding details live in rt/gpu; this file only sequences them.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Log     helio.Logger
	Effects *helio.EffectManager
	Camera  *core.CameraState
	Buffers *gpu.GpuBufferManager

	DepthTexture *wgpu.Texture
	DepthView    *wgpu.TextureView

	ParticlePipeline   *wgpu.RenderPipeline
	ParticleBindGroups [2]*wgpu.BindGroup
	PyramidMode        core.ReduceMode
	Profiler           *Profiler
	LastTime           float64
	FrameCount         int
}

func NewApp(window *glfw.Window, log helio.Logger, mode core.ReduceMode) *App {
	w, h := window.GetFramebufferSize()
	return &App{
		Window:      window,
		Log:         log,
		Effects:     helio.NewEffectManager(log),
		Camera:      core.NewCameraState(float32(w) / float32(h)),
		PyramidMode: mode,
		Profiler:    NewProfiler(),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	pyramidModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Depth Pyramid CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.DepthPyramidWGSL},
	})
	if err != nil {
		return err
	}
	countModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Particle Count CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticleCountWGSL},
	})
	if err != nil {
		return err
	}
	updateModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Particle Update CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticleUpdateWGSL},
	})
	if err != nil {
		return err
	}
	renderModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Particle Render VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticleRenderWGSL},
	})
	if err != nil {
		return err
	}

	a.Buffers = gpu.NewGpuBufferManager(a.Device)
	if err := a.Buffers.SetupParticlePipelines(countModule, updateModule); err != nil {
		return err
	}
	a.ParticlePipeline, a.ParticleBindGroups, err = a.Buffers.SetupParticleRenderPipeline(renderModule, format)
	if err != nil {
		return err
	}

	if err := a.setupDepthSource(uint32(width), uint32(height)); err != nil {
		return err
	}
	if err := a.Buffers.SetupDepthPyramid(uint32(width), uint32(height), pyramidModule, a.PyramidMode); err != nil {
		return err
	}

	a.spawnDemoEffects()
	a.LastTime = glfw.GetTime()
	a.Log.Infof("initialized %dx%d, pyramid mode %s", width, height, a.PyramidMode)
	return nil
}

// setupDepthSource creates the R32Float source image the pyramid
// reduces. The demo has no geometry pass, so it uploads a radial
// gradient once instead.
func (a *App) setupDepthSource(w, h uint32) error {
	if a.DepthTexture != nil {
		a.DepthTexture.Release()
	}
	var err error
	a.DepthTexture, err = a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Demo Depth Source",
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR32Float,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	a.DepthView, err = a.DepthTexture.CreateView(nil)
	if err != nil {
		return err
	}

	data := make([]byte, w*h*4)
	cx, cy := float64(w)/2, float64(h)/2
	maxR := math.Hypot(cx, cy)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			r := math.Hypot(float64(x)-cx, float64(y)-cy) / maxR
			depth := float32(10 + 990*r)
			binary.LittleEndian.PutUint32(data[(y*w+x)*4:], math.Float32bits(depth))
		}
	}
	return a.Queue.WriteTexture(
		a.DepthTexture.AsImageCopy(),
		data,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
}

func (a *App) spawnDemoEffects() {
	base := helio.EmitterParams{
		MaxParticles:     4096,
		SpawnRate:        512,
		LifetimeMin:      1.5,
		LifetimeMax:      4.0,
		ScaleMin:         mgl32.Vec3{0.05, 0.05, 0.05},
		ScaleMax:         mgl32.Vec3{0.2, 0.2, 0.2},
		SpawnVolumeType:  core.SpawnVolumeSphere,
		SpawnVolumeInfo:  mgl32.Vec4{2, 0, 0, 0},
		AlignMode:        core.AlignBillboard,
		BoundsHalfExtent: mgl32.Vec3{4, 4, 4},
	}
	positions := []mgl32.Vec3{{0, 2, 0}, {-6, 1, -4}, {6, 1, -4}}
	for _, p := range positions {
		if _, err := a.Effects.Spawn(base, mgl32.Translate3D(p.X(), p.Y(), p.Z())); err != nil {
			a.Log.Errorf("spawn failed: %v", err)
		}
	}
}

func (a *App) Resize(w, h int) {
	if w == 0 || h == 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	a.Camera.Aspect = float32(w) / float32(h)
	a.Camera.UpdateMatrices()
}

// Frame runs one simulation+render step. Ordering within the frame:
// host simulation first, then uploads, then the compute dispatches, then
// the draw that consumes their output.
func (a *App) Frame() error {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now
	if dt <= 0 || dt > 0.25 {
		dt = 1.0 / 60.0
	}

	a.Camera.BeginFrame()
	a.Camera.Yaw = float32(now * 0.1)
	a.Camera.UpdateMatrices()

	a.Profiler.Begin("sim")
	planes := core.ExtractFrustumPlanes(a.Camera.Projection.Mul4(a.Camera.View))
	a.Effects.Update(dt, &planes)
	a.Profiler.End("sim")

	a.Buffers.UploadEmitterConstants(a.Effects.Store(), a.Effects.EmitterCount(), a.Effects.StaticsDirty())
	if a.Effects.StaticsDirty() {
		a.Buffers.UploadEmitterIndices(a.Effects.EmitterIndices())
		a.Buffers.UploadCounts(a.Effects.Store(), a.Effects.EmitterCount())
		a.Effects.ClearStaticsDirty()
	}

	frame := core.FrameConstantsFrom(a.Camera)
	a.Buffers.UploadFrameConstants(&frame)

	surfaceTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()

	surfaceView, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer surfaceView.Release()

	a.Profiler.Begin("encode")
	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	parity := a.Buffers.FrameParity()
	a.Buffers.DispatchParticles(encoder, a.Effects.EmitterCount(), a.Effects.ParticleCount(), dt)
	if err := a.Buffers.DispatchDepthPyramid(encoder, a.DepthView); err != nil {
		a.Log.Warnf("pyramid dispatch skipped: %v", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       surfaceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.02, G: 0.02, B: 0.04, A: 1.0},
			},
		},
	})
	if count := a.Effects.ParticleCount(); count > 0 && len(a.Effects.RenderGroup()) > 0 {
		pass.SetPipeline(a.ParticlePipeline)
		pass.SetBindGroup(0, a.ParticleBindGroups[parity], nil)
		pass.Draw(4, uint32(count), 0, 0)
	}
	if err := pass.End(); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()
	a.Buffers.SwapFrame()
	a.Profiler.End("encode")

	if data, w, h := a.Buffers.ReadbackDepthPyramid(); len(data) > 0 && a.FrameCount%240 == 0 {
		a.Log.Debugf("pyramid readback %dx%d level %d, texel[0]=%.1f", w, h, a.Buffers.ReadbackLevel, data[0])
	}

	a.Profiler.SetCount("emitters", a.Effects.EmitterCount())
	a.Profiler.SetCount("particles", a.Effects.ParticleCount())
	a.Profiler.SetCount("visible", len(a.Effects.RenderGroup()))
	if a.FrameCount%240 == 0 {
		a.Log.Debugf("%s", a.Profiler.Stats())
	}
	a.FrameCount++
	return nil
}
