// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package progress tracks completion of a multi-step operation as a tree of
// weighted steps. Each step can own a child tree, so a long transfer nested
// inside one step moves the overall percentage smoothly.
package progress

import "sync"

// Reporter is the narrow view used by transfer code: announce the number of
// equal steps, then mark them done one at a time.
type Reporter interface {
	SetSteps(n int)
	StepDone()
}

// ChangeFunc is called after any change anywhere in the tree with the
// overall percentage and the status of the step being worked on.
type ChangeFunc func(percentage float64, status string)

type step struct {
	status string
	weight int
	child  *Progress
}

// Progress is a weighted step tree. It is safe for concurrent use; a UI may
// read it while a transfer updates it.
type Progress struct {
	mu       sync.Mutex
	parent   *Progress
	steps    []*step
	done     int
	onChange ChangeFunc
}

// New creates an empty root progress
func New() *Progress {
	return &Progress{}
}

// SetChangeFunc installs the change callback. Only the root's callback fires.
func (p *Progress) SetChangeFunc(fn ChangeFunc) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// AddStep appends a step with the given status and relative weight
func (p *Progress) AddStep(status string, weight int) {
	if weight < 0 {
		weight = 0
	}
	p.mu.Lock()
	p.steps = append(p.steps, &step{status: status, weight: weight})
	p.mu.Unlock()
}

// SetSteps replaces any existing steps with n steps of equal weight
func (p *Progress) SetSteps(n int) {
	p.mu.Lock()
	p.steps = p.steps[:0]
	for i := 0; i < n; i++ {
		p.steps = append(p.steps, &step{weight: 1})
	}
	p.done = 0
	p.mu.Unlock()
	p.changed()
}

// StepDone completes the current step. Calls beyond the step count are
// ignored.
func (p *Progress) StepDone() {
	p.mu.Lock()
	if p.done < len(p.steps) {
		p.done++
	}
	p.mu.Unlock()
	p.changed()
}

// Finish marks every remaining step complete
func (p *Progress) Finish() {
	p.mu.Lock()
	p.done = len(p.steps)
	p.mu.Unlock()
	p.changed()
}

// Child returns the progress tree of the current step, creating it on first
// use. Once all steps are done a detached tree is returned so late callers
// still have something to report into.
func (p *Progress) Child() *Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done >= len(p.steps) {
		return &Progress{}
	}
	s := p.steps[p.done]
	if s.child == nil {
		s.child = &Progress{parent: p}
	}
	return s.child
}

// Percentage returns completion from 0 to 100
func (p *Progress) Percentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, s := range p.steps {
		total += s.weight
	}
	if total == 0 {
		if len(p.steps) > 0 && p.done == len(p.steps) {
			return 100
		}
		return 0
	}

	var sum float64
	for i, s := range p.steps {
		switch {
		case i < p.done:
			sum += float64(s.weight)
		case i == p.done && s.child != nil:
			sum += float64(s.weight) * s.child.Percentage() / 100
		}
	}
	return sum * 100 / float64(total)
}

// Status returns the status of the innermost step in progress, or "" when
// the tree has no named step running.
func (p *Progress) Status() string {
	p.mu.Lock()
	if p.done >= len(p.steps) {
		p.mu.Unlock()
		return ""
	}
	s := p.steps[p.done]
	status, child := s.status, s.child
	p.mu.Unlock()

	if child != nil {
		if inner := child.Status(); inner != "" {
			return inner
		}
	}
	return status
}

// Finished reports whether every step is done
func (p *Progress) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps) > 0 && p.done == len(p.steps)
}

func (p *Progress) changed() {
	root := p
	for root.parent != nil {
		root = root.parent
	}

	root.mu.Lock()
	fn := root.onChange
	root.mu.Unlock()

	if fn != nil {
		fn(root.Percentage(), root.Status())
	}
}
