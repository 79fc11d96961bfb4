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

package connector

import (
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

func (connector *Connector) String(buf *bytes.Buffer) {
	buf.WriteString("pipe connector")
}

func (connector *Connector) Prepare(_ *process.Process) error {
	return nil
}

func (connector *Connector) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	reg := connector.Reg

	result, err := connector.Children[0].Call(proc)
	if err != nil {
		return result, err
	}

	if result.Batch == nil {
		result.Status = vm.ExecStop
		return result, nil
	}

	bat := result.Batch
	if bat.IsEmpty() {
		return result, nil
	}
	bat.AddCnt(1)

	// a done context here means the pipeline closed, there is nothing
	// to log
	select {
	case <-proc.Ctx.Done():
		bat.Clean(proc.Mp())
		result.Status = vm.ExecStop
		return result, nil

	case <-reg.Ctx.Done():
		bat.Clean(proc.Mp())
		result.Status = vm.ExecStop
		return result, nil

	case reg.Ch <- bat:
		return result, nil
	}
}
