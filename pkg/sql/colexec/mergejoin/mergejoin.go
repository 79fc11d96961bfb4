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
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

func (mergeJoin *MergeJoin) String(buf *bytes.Buffer) {
	buf.WriteString("merge join")
}

func (mergeJoin *MergeJoin) Prepare(proc *process.Process) error {
	if mergeJoin.ctr.state != nil {
		return nil
	}
	state, err := join.NewMergeState(mergeJoin.Joiner, mergeJoin.MaxRowCount, proc.Mp())
	if err != nil {
		return err
	}
	mergeJoin.ctr.state = state
	return nil
}

func (mergeJoin *MergeJoin) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	ctr := &mergeJoin.ctr
	if ctr.emitted != nil {
		ctr.emitted.Clean(proc.Mp())
		ctr.emitted = nil
	}

	result := vm.NewCallResult()
	for {
		if len(ctr.outs) > 0 {
			ctr.emitted = ctr.outs[0]
			ctr.outs = ctr.outs[1:]
			result.Batch = ctr.emitted
			return result, nil
		}
		if ctr.state.Finished() {
			result.Status = vm.ExecStop
			return result, nil
		}

		side := ctr.state.NeedSide()
		res, err := vm.ChildrenCall(mergeJoin.Children[side], proc)
		if err != nil {
			return res, err
		}
		if res.Batch != nil && res.Batch.IsEmpty() {
			continue
		}

		bats, err := ctr.state.Push(proc, side, res.Batch)
		if err != nil {
			return result, err
		}
		ctr.outs = append(ctr.outs, bats...)
	}
}
