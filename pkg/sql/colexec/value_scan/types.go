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

package value_scan

import (
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(ValueScan)

// ValueScan feeds a fixed list of in-memory batches into the
// pipeline, one per call. It owns the batches until Free.
type ValueScan struct {
	Batchs []*batch.Batch

	ctr container
	vm.OperatorBase
}

type container struct {
	idx int
}

func NewArgument() *ValueScan {
	return &ValueScan{}
}

func (valueScan *ValueScan) GetOperatorBase() *vm.OperatorBase {
	return &valueScan.OperatorBase
}

func (valueScan *ValueScan) OpType() vm.OpType {
	return vm.ValueScan
}

func (valueScan *ValueScan) Free(proc *process.Process, pipelineFailed bool, err error) {
	for i := range valueScan.Batchs {
		if valueScan.Batchs[i] != nil {
			valueScan.Batchs[i].Clean(proc.Mp())
			valueScan.Batchs[i] = nil
		}
	}
	valueScan.Batchs = nil
}
