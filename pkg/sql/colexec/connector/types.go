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
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(Connector)

// Connector pushes its child's output into one wait register,
// handing each batch over to the pipeline listening on the other end.
type Connector struct {
	Reg *process.WaitRegister

	vm.OperatorBase
}

func NewArgument(reg *process.WaitRegister) *Connector {
	return &Connector{Reg: reg}
}

func (connector *Connector) GetOperatorBase() *vm.OperatorBase {
	return &connector.OperatorBase
}

func (connector *Connector) OpType() vm.OpType {
	return vm.Connector
}

// Free ends the stream: a nil batch tells the receiver no more data
// comes, then the channel closes. On a failed pipeline the channel is
// drained first so the nil always fits.
func (connector *Connector) Free(proc *process.Process, pipelineFailed bool, err error) {
	if pipelineFailed {
		for len(connector.Reg.Ch) > 0 {
			bat := <-connector.Reg.Ch
			if bat == nil {
				break
			}
			bat.Clean(proc.Mp())
		}
	}

	select {
	case connector.Reg.Ch <- nil:
	case <-connector.Reg.Ctx.Done():
	}
	close(connector.Reg.Ch)
}
