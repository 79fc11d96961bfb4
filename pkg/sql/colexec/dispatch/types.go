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

package dispatch

import (
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(Dispatch)

// Dispatch fans its child's output out over several wait registers,
// round robin, so downstream branches share the load.
type Dispatch struct {
	LocalRegs []*process.WaitRegister

	ctr container
	vm.OperatorBase
}

type container struct {
	sendCnt int
}

func NewArgument(regs []*process.WaitRegister) *Dispatch {
	return &Dispatch{LocalRegs: regs}
}

func (dispatch *Dispatch) GetOperatorBase() *vm.OperatorBase {
	return &dispatch.OperatorBase
}

func (dispatch *Dispatch) OpType() vm.OpType {
	return vm.Dispatch
}

// Free ends every outgoing stream the way a connector ends its single
// one: drain on failure, send the nil marker, close.
func (dispatch *Dispatch) Free(proc *process.Process, pipelineFailed bool, err error) {
	for _, reg := range dispatch.LocalRegs {
		if pipelineFailed {
			for len(reg.Ch) > 0 {
				bat := <-reg.Ch
				if bat == nil {
					break
				}
				bat.Clean(proc.Mp())
			}
		}
		select {
		case reg.Ch <- nil:
		case <-reg.Ctx.Done():
		}
		close(reg.Ch)
	}
}
