// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_EqualSteps(t *testing.T) {
	p := New()
	p.SetSteps(4)

	assert.InDelta(t, 0, p.Percentage(), 0.001)
	p.StepDone()
	assert.InDelta(t, 25, p.Percentage(), 0.001)
	p.StepDone()
	p.StepDone()
	p.StepDone()
	assert.InDelta(t, 100, p.Percentage(), 0.001)
	assert.True(t, p.Finished())

	// extra calls are ignored
	p.StepDone()
	assert.InDelta(t, 100, p.Percentage(), 0.001)
}

func TestProgress_WeightedChildren(t *testing.T) {
	p := New()
	p.AddStep("writing", 50)
	p.AddStep("busy", 30)
	p.AddStep("restart", 20)

	child := p.Child()
	child.SetSteps(10)
	for i := 0; i < 5; i++ {
		child.StepDone()
	}
	assert.InDelta(t, 25, p.Percentage(), 0.001)
	assert.Equal(t, "writing", p.Status())

	p.StepDone()
	assert.InDelta(t, 50, p.Percentage(), 0.001)
	assert.Equal(t, "busy", p.Status())

	p.StepDone()
	p.StepDone()
	assert.InDelta(t, 100, p.Percentage(), 0.001)
	assert.Equal(t, "", p.Status())
}

func TestProgress_NestedStatus(t *testing.T) {
	p := New()
	p.AddStep("update", 1)
	child := p.Child()
	child.AddStep("verifying", 1)

	assert.Equal(t, "verifying", p.Status())
	assert.Same(t, child, p.Child())
}

func TestProgress_ChildAfterFinish(t *testing.T) {
	p := New()
	p.AddStep("only", 1)
	p.Finish()

	late := p.Child()
	require.NotNil(t, late)
	late.SetSteps(3)
	late.StepDone()
	assert.InDelta(t, 100, p.Percentage(), 0.001)
}

func TestProgress_ChangeFunc(t *testing.T) {
	p := New()
	p.AddStep("writing", 1)

	var mu sync.Mutex
	var seen []float64
	p.SetChangeFunc(func(pct float64, status string) {
		mu.Lock()
		seen = append(seen, pct)
		mu.Unlock()
		assert.Equal(t, "writing", status)
	})

	child := p.Child()
	child.SetSteps(2)
	child.StepDone()
	child.StepDone()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.InDelta(t, 0, seen[0], 0.001)
	assert.InDelta(t, 50, seen[1], 0.001)
	assert.InDelta(t, 100, seen[2], 0.001)
}

func TestProgress_ConcurrentReaders(t *testing.T) {
	p := New()
	p.AddStep("writing", 1)
	child := p.Child()
	child.SetSteps(1000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = p.Percentage()
			_ = p.Status()
		}
	}()
	for i := 0; i < 1000; i++ {
		child.StepDone()
	}
	wg.Wait()

	assert.InDelta(t, 100, p.Percentage(), 0.001)
}

func TestReporterInterface(t *testing.T) {
	var r Reporter = New()
	r.SetSteps(2)
	r.StepDone()
	assert.InDelta(t, 50, r.(*Progress).Percentage(), 0.001)
}
