package main

import (
	"flag"
	"runtime"
	"strings"

	helio "github.com/helio3d/helio"
	"github.com/helio3d/helio/rt/app"
	"github.com/helio3d/helio/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	pyramidMode := flag.String("pyramid", "min", "depth pyramid reduction mode: min or max")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	mode := core.ReduceMin
	if strings.EqualFold(*pyramidMode, "max") {
		mode = core.ReduceMax
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Helio Particles", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, helio.NewDefaultLogger("helio", *debug), mode)
	if err := application.Init(); err != nil {
		panic(err)
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		if err := application.Frame(); err != nil {
			panic(err)
		}
	}
}
