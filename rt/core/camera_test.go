package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFrustumAABBVisibility(t *testing.T) {
	// Camera at origin looking down -Z, 90 deg FOV, square aspect.
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
	)
	planes := ExtractFrustumPlanes(proj.Mul4(view))

	tests := []struct {
		name     string
		min, max mgl32.Vec3
		expected bool
	}{
		{"inside center", mgl32.Vec3{-1, -1, -10}, mgl32.Vec3{1, 1, -5}, true},
		{"outside left", mgl32.Vec3{-20, -1, -10}, mgl32.Vec3{-15, 1, -5}, false},
		{"outside right", mgl32.Vec3{15, -1, -10}, mgl32.Vec3{20, 1, -5}, false},
		{"behind near", mgl32.Vec3{-1, -1, 2}, mgl32.Vec3{1, 1, 5}, false},
		{"beyond far", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		{"straddling left plane", mgl32.Vec3{-15, -1, -10}, mgl32.Vec3{-5, 1, -5}, true},
		{"encompassing", mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}, true},
	}
	for _, tc := range tests {
		if got := AABBVisible(tc.min, tc.max, planes); got != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestCameraPrevFrameSnapshot(t *testing.T) {
	cam := NewCameraState(1.0)
	cam.Position = mgl32.Vec3{5, 0, 0}
	cam.UpdateMatrices()
	cam.BeginFrame()

	firstView := cam.View

	cam.Position = mgl32.Vec3{6, 0, 0}
	cam.UpdateMatrices()

	if cam.PrevView != firstView {
		t.Error("previous view must hold last frame's matrix after the camera moves")
	}
	if cam.View == cam.PrevView {
		t.Error("current view should reflect the move")
	}
}

func TestViewOriginProjectionHasNoTranslation(t *testing.T) {
	cam := NewCameraState(1.0)
	cam.Position = mgl32.Vec3{123, 45, -678}
	cam.UpdateMatrices()

	far := NewCameraState(1.0)
	far.Position = mgl32.Vec3{0, 0, 0}
	far.UpdateMatrices()

	// Same orientation, different position: the origin-anchored matrix
	// must be identical.
	if cam.ViewOriginProjection != far.ViewOriginProjection {
		t.Error("view-origin projection must not depend on camera position")
	}
}
