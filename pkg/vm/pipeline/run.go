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
	"sync"
	"sync/atomic"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
	"github.com/panjf2000/ants/v2"
)

// poolSize decides how many workers the run pool holds; tests stub it
// down to exercise the overload fallback.
var poolSize = func(tasks int) int { return tasks }

// runState carries the first error across workers. The error is
// written before the failed flag, so a worker that sees failed set
// sees the error too.
type runState struct {
	once   sync.Once
	failed int32
	err    error
}

func (r *runState) fail(proc *process.Process, err error) {
	r.once.Do(func() {
		r.err = err
		atomic.StoreInt32(&r.failed, 1)
		proc.Cancel()
	})
}

func (r *runState) snapshot() (bool, error) {
	if atomic.LoadInt32(&r.failed) == 1 {
		return true, r.err
	}
	return false, nil
}

// Run executes the pipeline with one worker per driver and per
// branch. Every data batch goes to sink under its branch index; the
// totals row arrives under index NumStreams with onTotals true.
// Batches stay owned by the emitting chain, so sink must consume
// them before returning, and sink runs concurrently across branches.
// The first error cancels proc and wins; Run returns once every
// worker finished and every closer ran.
func (p *Pipeline) Run(proc *process.Process, sink func(branch int, onTotals bool, bat *batch.Batch) error) error {
	if p.ran {
		return moerr.NewInternalError(proc.Ctx, "pipeline already ran")
	}
	p.ran = true

	defer func() {
		for _, closer := range p.closers {
			closer(proc)
		}
		p.closers = nil
		// releases whatever the message board still pins, the join
		// map included when no probe ever took its reference
		proc.MessageBoard.Reset()
	}()

	tasks := len(p.drivers) + len(p.streams)
	if p.totals != nil {
		tasks++
	}
	size := poolSize(tasks)
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		p.ran = false
		p.Dispose(proc)
		return err
	}
	defer pool.Release()

	state := &runState{}
	var wg sync.WaitGroup
	submit := func(task func()) {
		wg.Add(1)
		wrapped := func() {
			defer wg.Done()
			task()
		}
		if err := pool.Submit(wrapped); err != nil {
			// the dataflow cannot wait for a free slot
			go wrapped()
		}
	}

	for i := range p.drivers {
		d := p.drivers[i]
		submit(func() {
			runChain(d, state, proc, nil)
		})
	}
	for i := range p.streams {
		i, b := i, p.streams[i]
		submit(func() {
			runChain(b, state, proc, func(bat *batch.Batch) error {
				return sink(i, false, bat)
			})
		})
	}
	if p.totals != nil {
		b, idx := *p.totals, len(p.streams)
		submit(func() {
			runChain(b, state, proc, func(bat *batch.Batch) error {
				return sink(idx, true, bat)
			})
		})
	}

	wg.Wait()
	_, err = state.snapshot()
	return err
}

// runChain pumps one chain to its end and frees it right away, so
// senders blocked inside always get their end markers.
func runChain(b branch, state *runState, proc *process.Process, deliver func(*batch.Batch) error) {
	for {
		res, err := b.op.Call(b.proc)
		if err != nil {
			state.fail(proc, err)
			break
		}
		if res.Status == vm.ExecStop {
			break
		}
		if res.Batch == nil || res.Batch.IsEmpty() {
			continue
		}
		if deliver != nil {
			if err := deliver(res.Batch); err != nil {
				state.fail(proc, err)
				break
			}
		}
	}
	failed, err := state.snapshot()
	vm.Free(b.op, b.proc, failed, err)
}
