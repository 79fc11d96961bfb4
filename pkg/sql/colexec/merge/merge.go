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
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

const opName = "merge"

func (merge *Merge) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
}

func (merge *Merge) Prepare(proc *process.Process) error {
	merge.ctr.InitReceiver(proc)
	return nil
}

func (merge *Merge) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	// the batch lent out by the previous call comes home here
	if merge.ctr.buf != nil {
		merge.ctr.buf.Clean(proc.Mp())
		merge.ctr.buf = nil
	}

	result := vm.NewCallResult()
	bat, end, err := merge.ctr.ReceiveFromAllRegs()
	if err != nil {
		return result, err
	}
	if end {
		result.Status = vm.ExecStop
		return result, nil
	}

	merge.ctr.buf = bat
	result.Batch = merge.ctr.buf
	return result, nil
}
