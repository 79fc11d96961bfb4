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

package mergejoin

import (
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(MergeJoin)

// MergeJoin drives a sort-merge joiner over its two children, the
// left at index 0 and the right at index 1, both sorted by their join
// keys. Each call pulls from whichever side the merge is blocked on.
type MergeJoin struct {
	Joiner *join.MergeJoin
	// MaxRowCount cuts the join output into batches of at most this
	// many rows.
	MaxRowCount int

	ctr container
	vm.OperatorBase
}

type container struct {
	state *join.MergeState

	outs    []*batch.Batch
	emitted *batch.Batch
}

func NewArgument() *MergeJoin {
	return &MergeJoin{}
}

func (mergeJoin *MergeJoin) GetOperatorBase() *vm.OperatorBase {
	return &mergeJoin.OperatorBase
}

func (mergeJoin *MergeJoin) OpType() vm.OpType {
	return vm.MergeJoin
}

func (mergeJoin *MergeJoin) Free(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &mergeJoin.ctr
	if ctr.emitted != nil {
		ctr.emitted.Clean(proc.Mp())
		ctr.emitted = nil
	}
	for _, bat := range ctr.outs {
		bat.Clean(proc.Mp())
	}
	ctr.outs = nil
	if ctr.state != nil {
		ctr.state.Free()
		ctr.state = nil
	}
}
