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
	"sync/atomic"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/connector"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/dispatch"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/hashbuild"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/joining"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/merge"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/mergejoin"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/value_scan"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// joinMapTags hands out distinct message tags for the hash builds of
// one program run.
var joinMapTags int32

func nextJoinMapTag() int32 {
	return atomic.AddInt32(&joinMapTags, 1)
}

// AddDefaultTotals opens the totals branch with one synthesized row
// of column defaults in the pipeline schema.
func (p *Pipeline) AddDefaultTotals(proc *process.Process) error {
	if p.totals != nil {
		return moerr.NewInternalError(proc.Ctx, "pipeline already has a totals branch")
	}
	bat := p.sch.NewBatch()
	for _, vec := range bat.Vecs {
		if err := vector.AppendDefault(vec, false, proc.Mp()); err != nil {
			bat.Clean(proc.Mp())
			return err
		}
	}
	bat.SetRowCount(1)

	src := value_scan.NewArgument()
	src.Batchs = []*batch.Batch{bat}
	return p.AddTotals(proc, src)
}

// AddTransform caps every open branch, the totals one included, with
// the operator f builds. out becomes the pipeline schema behind the
// new operators; nil keeps the current one.
func (p *Pipeline) AddTransform(out *schema.Schema, f func(sch *schema.Schema, onTotals bool) vm.Operator) error {
	for i := range p.streams {
		op := f(p.sch, false)
		op.GetOperatorBase().AppendChild(p.streams[i].op)
		if err := op.Prepare(p.streams[i].proc); err != nil {
			return err
		}
		p.streams[i].op = op
	}
	if p.totals != nil {
		op := f(p.sch, true)
		op.GetOperatorBase().AppendChild(p.totals.op)
		if err := op.Prepare(p.totals.proc); err != nil {
			return err
		}
		p.totals.op = op
	}
	if out != nil {
		p.sch = out
	}
	return nil
}

// Resize changes the data branch count to n. Going down merges, going
// up deals round robin, and a mixed change merges first. The totals
// branch never resizes.
func (p *Pipeline) Resize(proc *process.Process, n int) error {
	if n < 1 {
		n = 1
	}
	if len(p.streams) == n {
		return nil
	}
	if err := p.single(proc); err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	src := p.streams[0]
	regs := make([]*process.WaitRegister, n)
	outs := make([]branch, n)
	for i := 0; i < n; i++ {
		cproc := process.NewFromProc(proc, proc.Ctx, 1)
		regs[i] = cproc.Reg.MergeReceivers[0]
		m := merge.NewArgument()
		if err := m.Prepare(cproc); err != nil {
			return err
		}
		outs[i] = branch{op: m, proc: cproc}
	}
	d := dispatch.NewArgument(regs)
	d.GetOperatorBase().AppendChild(src.op)
	if err := d.Prepare(src.proc); err != nil {
		return err
	}
	p.drivers = append(p.drivers, branch{op: d, proc: src.proc})
	p.streams = outs
	return nil
}

// single folds all data branches into one merge-rooted branch; the
// old branches become drivers pushing into it.
func (p *Pipeline) single(proc *process.Process) error {
	if len(p.streams) == 1 {
		return nil
	}
	cproc := process.NewFromProc(proc, proc.Ctx, len(p.streams))
	for i := range p.streams {
		c := connector.NewArgument(cproc.Reg.MergeReceivers[i])
		c.GetOperatorBase().AppendChild(p.streams[i].op)
		if err := c.Prepare(p.streams[i].proc); err != nil {
			return err
		}
		p.drivers = append(p.drivers, branch{op: c, proc: p.streams[i].proc})
	}
	m := merge.NewArgument()
	if err := m.Prepare(cproc); err != nil {
		return err
	}
	p.streams = []branch{{op: m, proc: cproc}}
	return nil
}

// Join caps every branch with the joining transform for j. Every
// branch blocks on tag while the joiner is not pre-filled; data
// branches then probe and the one finishing last emits the trailing
// rows, while the totals branch folds the joiner's totals into its
// row. out is the join output schema.
func (p *Pipeline) Join(j join.Joiner, out *schema.Schema, maxRowCount int, tag int32, defaultTotals bool) error {
	counter := joining.NewFinishCounter(len(p.streams))
	return p.AddTransform(out, func(_ *schema.Schema, onTotals bool) vm.Operator {
		op := joining.NewArgument()
		op.Joiner = j
		op.MaxRowCount = maxRowCount
		op.JoinMapTag = tag
		if onTotals {
			op.OnTotals = true
			op.DefaultTotals = defaultTotals
		} else {
			op.Counter = counter
		}
		return op
	})
}

// JoinSymmetric merges two key-sorted pipelines through mj. Both
// sides collapse to one stream and the merge consumes them in
// lockstep, so the result has a single data branch in out. Totals
// have no meaning across a merge join.
func JoinSymmetric(proc *process.Process, left, right *Pipeline, mj *join.MergeJoin, out *schema.Schema, maxRowCount int) (*Pipeline, error) {
	if left.HasTotals() || right.HasTotals() {
		return nil, moerr.NewInternalError(proc.Ctx, "merge join cannot take totals streams")
	}
	if err := left.single(proc); err != nil {
		return nil, err
	}
	if err := right.single(proc); err != nil {
		return nil, err
	}

	op := mergejoin.NewArgument()
	op.Joiner = mj
	op.MaxRowCount = maxRowCount
	op.GetOperatorBase().AppendChild(left.streams[0].op)
	op.GetOperatorBase().AppendChild(right.streams[0].op)
	if err := op.Prepare(proc); err != nil {
		return nil, err
	}

	joined := &Pipeline{
		sch:     out,
		streams: []branch{{op: op, proc: proc}},
		drivers: append(left.drivers, right.drivers...),
		closers: append(left.closers, right.closers...),
	}
	left.consumed()
	right.consumed()
	return joined, nil
}

// JoinBuildProbe runs j's build over the right pipeline, publishes
// the join map, and applies the probe to every left branch. The left
// side resizes to maxParallel unless keepLeftOrder holds it as is.
// When the joiner carries a totals row and the left side has none, a
// default totals branch is synthesized; a right side totals row is
// offered to the joiner through the hash build.
func JoinBuildProbe(proc *process.Process, left, right *Pipeline, j join.Joiner, out *schema.Schema, maxRowCount, maxParallel int, keepLeftOrder bool) (*Pipeline, error) {
	tag := nextJoinMapTag()

	rightTotals := right.totals
	right.totals = nil
	if err := right.single(proc); err != nil {
		return nil, err
	}

	if !keepLeftOrder && maxParallel >= 1 {
		if err := left.Resize(proc, maxParallel); err != nil {
			return nil, err
		}
	}
	defaultTotals := false
	if !left.HasTotals() && j.HasTotals() {
		if err := left.AddDefaultTotals(proc); err != nil {
			return nil, err
		}
		defaultTotals = true
	}

	hb := hashbuild.NewArgument()
	hb.Joiner = j
	hb.JoinMapTag = tag
	hb.ProbeCnt = len(left.streams)
	if left.totals != nil {
		// the totals branch holds a reference across the barrier too
		hb.ProbeCnt++
	}
	hb.GetOperatorBase().AppendChild(right.streams[0].op)
	if rightTotals != nil {
		hb.GetOperatorBase().AppendChild(rightTotals.op)
	}
	if err := hb.Prepare(right.streams[0].proc); err != nil {
		return nil, err
	}

	if err := left.Join(j, out, maxRowCount, tag, defaultTotals); err != nil {
		return nil, err
	}

	left.drivers = append(left.drivers, right.drivers...)
	left.drivers = append(left.drivers, branch{op: hb, proc: right.streams[0].proc})
	left.closers = append(left.closers, right.closers...)
	right.consumed()
	return left, nil
}

// consumed empties a pipeline whose chains moved into another one.
func (p *Pipeline) consumed() {
	p.streams, p.drivers, p.closers = nil, nil, nil
	p.totals = nil
	p.ran = true
}
