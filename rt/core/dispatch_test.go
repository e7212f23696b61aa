package core

import (
	"sync/atomic"
	"testing"
)

func TestDispatch1DCoversEveryInvocation(t *testing.T) {
	for _, count := range []int{0, 1, 7, 64, 1000} {
		hits := make([]int32, count)
		Dispatch1D(count, func(id int) {
			atomic.AddInt32(&hits[id], 1)
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("count %d: invocation %d ran %d times", count, i, h)
			}
		}
	}
}

func TestDispatch2DCoversGrid(t *testing.T) {
	const w, h = 33, 17
	hits := make([]int32, w*h)
	Dispatch2D(w, h, func(x, y int) {
		atomic.AddInt32(&hits[y*w+x], 1)
	})
	for i, v := range hits {
		if v != 1 {
			t.Fatalf("texel %d ran %d times", i, v)
		}
	}
}
