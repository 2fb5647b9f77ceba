package linsolve

import (
	"container/heap"
	"math"
	"testing"

	"github.com/addsolve/kernel/sparse"
)

func twoByTwoCSR() *sparse.CSR {
	return sparse.NewCSR(2, 2, []int{0, 2, 4}, []int{0, 1, 0, 1}, []float64{4, -1, -1, 4})
}

func TestPushHeapOrdersByPriorityThenIndex(t *testing.T) {
	var h pushHeap
	items := []pushItem{{idx: 3, priority: 1}, {idx: 1, priority: 5}, {idx: 2, priority: 5}, {idx: 0, priority: 2}}
	for _, it := range items {
		heap.Push(&h, it)
	}
	var order []int
	for h.Len() > 0 {
		order = append(order, heap.Pop(&h).(pushItem).idx)
	}
	want := []int{1, 2, 0, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestPushCoreConvergesToCorrectSolution(t *testing.T) {
	m := twoByTwoCSR()
	csc := m.ToCSC()
	core := newPushCore(cscNeighbors{csc}, []float64{1, 2}, 1e-10, 10000)

	for {
		converged, _, err := core.step()
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if converged {
			break
		}
	}
	want := []float64{0.4, 0.6}
	for i, w := range want {
		if math.Abs(core.x[i]-w) > 1e-6 {
			t.Errorf("x[%d] = %g, want ~%g", i, core.x[i], w)
		}
	}
}

func TestPushCoreResetReusesState(t *testing.T) {
	m := twoByTwoCSR()
	csc := m.ToCSC()
	core := newPushCore(cscNeighbors{csc}, []float64{1, 2}, 1e-10, 10000)
	for {
		converged, _, err := core.step()
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if converged {
			break
		}
	}

	core.reset([]float64{2, 4})
	for {
		converged, _, err := core.step()
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if converged {
			break
		}
	}
	want := []float64{0.8, 1.2}
	for i, w := range want {
		if math.Abs(core.x[i]-w) > 1e-6 {
			t.Errorf("after reset x[%d] = %g, want ~%g", i, core.x[i], w)
		}
	}
}
