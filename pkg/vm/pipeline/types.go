// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// Pipeline is a streaming plan under construction: open data branches
// carrying batches in the current schema, an optional totals branch
// carrying the single totals row, and the sealed chains pumping into
// them. Steps extend the open ends, Run executes the whole.
type Pipeline struct {
	sch     *schema.Schema
	streams []branch
	totals  *branch

	// chains already capped by a connector, dispatch or hash build;
	// each needs its own worker to keep the registers moving
	drivers []branch

	closers []func(*process.Process)
	ran     bool
}

// branch pairs an operator chain with the process its receivers were
// prepared on; the chain is always called with that process.
type branch struct {
	op   vm.Operator
	proc *process.Process
}

// New opens one data branch per source operator, all in sch.
func New(proc *process.Process, sch *schema.Schema, sources ...vm.Operator) (*Pipeline, error) {
	if len(sources) == 0 {
		return nil, moerr.NewInternalError(proc.Ctx, "pipeline needs at least one source")
	}
	p := &Pipeline{sch: sch}
	for _, src := range sources {
		if err := src.Prepare(proc); err != nil {
			return nil, err
		}
		p.streams = append(p.streams, branch{op: src, proc: proc})
	}
	return p, nil
}

// AddTotals opens the totals branch from src.
func (p *Pipeline) AddTotals(proc *process.Process, src vm.Operator) error {
	if p.totals != nil {
		return moerr.NewInternalError(proc.Ctx, "pipeline already has a totals branch")
	}
	if err := src.Prepare(proc); err != nil {
		return err
	}
	p.totals = &branch{op: src, proc: proc}
	return nil
}

// NumStreams counts the data branches; the totals branch is not one
// of them.
func (p *Pipeline) NumStreams() int {
	return len(p.streams)
}

func (p *Pipeline) HasTotals() bool {
	return p.totals != nil
}

// Schema is the row layout currently flowing out of the data branches.
func (p *Pipeline) Schema() *schema.Schema {
	return p.sch
}

// AddCloser registers fn to run once after the pipeline's workers
// finish, whatever the outcome.
func (p *Pipeline) AddCloser(fn func(*process.Process)) {
	p.closers = append(p.closers, fn)
}

func (p *Pipeline) String() string {
	var buf bytes.Buffer
	for i := range p.streams {
		if i > 0 {
			buf.WriteByte('\n')
		}
		vm.String(p.streams[i].op, &buf)
	}
	for i := range p.drivers {
		buf.WriteString("\ndriver: ")
		vm.String(p.drivers[i].op, &buf)
	}
	if p.totals != nil {
		buf.WriteString("\ntotals: ")
		vm.String(p.totals.op, &buf)
	}
	return buf.String()
}

// Dispose releases a pipeline that will never run, every branch and
// driver chain included. A pipeline that ran cleans up in Run.
func (p *Pipeline) Dispose(proc *process.Process) {
	if p.ran {
		return
	}
	// drivers go first so their end markers unblock the receiving
	// chains' teardown
	for i := range p.drivers {
		vm.Free(p.drivers[i].op, p.drivers[i].proc, true, nil)
	}
	for i := range p.streams {
		vm.Free(p.streams[i].op, p.streams[i].proc, true, nil)
	}
	if p.totals != nil {
		vm.Free(p.totals.op, p.totals.proc, true, nil)
	}
	for _, closer := range p.closers {
		closer(proc)
	}
	p.streams, p.drivers, p.closers = nil, nil, nil
	p.totals = nil
	p.ran = true
}
