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

package merge

import (
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(Merge)

// Merge fans in the batches arriving on every merge receiver of its
// process, in whatever order they come.
type Merge struct {
	ctr container
	vm.OperatorBase
}

type container struct {
	buf *batch.Batch
	colexec.ReceiverOperator
}

func NewArgument() *Merge {
	return &Merge{}
}

func (merge *Merge) GetOperatorBase() *vm.OperatorBase {
	return &merge.OperatorBase
}

func (merge *Merge) OpType() vm.OpType {
	return vm.Merge
}

func (merge *Merge) Free(proc *process.Process, pipelineFailed bool, err error) {
	merge.ctr.FreeMergeTypeOperator(pipelineFailed)

	if merge.ctr.buf != nil {
		merge.ctr.buf.Clean(proc.Mp())
		merge.ctr.buf = nil
	}
}
