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

package joining

import (
	"sync/atomic"

	"github.com/matrixorigin/matrixflow/pkg/common/hashmap"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// FinishCounter coordinates the trailing pass of a join. Every data
// branch decrements once when its stream ends; the branch that takes
// the count to zero emits the unmatched rows.
type FinishCounter struct {
	n int64
}

func NewFinishCounter(n int) *FinishCounter {
	return &FinishCounter{n: int64(n)}
}

// Decrement consumes one branch completion and reports whether the
// caller was the last.
func (c *FinishCounter) Decrement() bool {
	return atomic.AddInt64(&c.n, -1) == 0
}

var _ vm.Operator = new(Joining)

// Joining applies a joiner to one pipeline branch. Data branches probe
// the side table batch by batch and the one finishing last adds the
// trailing unmatched rows. The totals branch instead folds the
// joiner's totals values into the single totals row.
type Joining struct {
	Joiner join.Joiner
	// JoinMapTag is the message tag the build publishes under; unused
	// when the joiner is pre-filled.
	JoinMapTag int32
	// MaxRowCount cuts the join output into batches of at most this
	// many rows.
	MaxRowCount int

	// OnTotals marks the totals branch; DefaultTotals that its totals
	// row was synthesized rather than received.
	OnTotals      bool
	DefaultTotals bool

	// Counter is shared by the data branches of one join; nil on the
	// totals branch.
	Counter *FinishCounter

	ctr container
	vm.OperatorBase
}

const (
	probing = iota
	ended
)

type container struct {
	state    int
	received bool
	jm       *hashmap.JoinMap

	outs    []*batch.Batch
	emitted *batch.Batch
}

func NewArgument() *Joining {
	return &Joining{}
}

func (joining *Joining) GetOperatorBase() *vm.OperatorBase {
	return &joining.OperatorBase
}

func (joining *Joining) OpType() vm.OpType {
	return vm.Join
}

func (joining *Joining) Free(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &joining.ctr
	if ctr.emitted != nil {
		ctr.emitted.Clean(proc.Mp())
		ctr.emitted = nil
	}
	for _, bat := range ctr.outs {
		bat.Clean(proc.Mp())
	}
	ctr.outs = nil
	if ctr.jm != nil {
		ctr.jm.Free()
		ctr.jm = nil
	}
}
