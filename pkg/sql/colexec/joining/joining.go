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
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/message"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

func (joining *Joining) String(buf *bytes.Buffer) {
	buf.WriteString("join ")
	buf.WriteString(joining.Joiner.Name())
	if joining.OnTotals {
		buf.WriteString(" totals")
	}
}

func (joining *Joining) Prepare(_ *process.Process) error {
	return nil
}

func (joining *Joining) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	ctr := &joining.ctr
	if ctr.emitted != nil {
		ctr.emitted.Clean(proc.Mp())
		ctr.emitted = nil
	}

	if joining.OnTotals {
		return joining.callTotals(proc)
	}

	// the side table must be complete before the first probe; the
	// build branch publishes it under the join map tag
	if !joining.Joiner.Filled() && !ctr.received {
		jm, err := message.ReceiveJoinMap(joining.JoinMapTag, proc.MessageBoard, proc.Ctx)
		if err != nil {
			return vm.CancelResult, err
		}
		ctr.received = true
		if jm == nil {
			// the build ended without a map, nothing will match
			return vm.CancelResult, nil
		}
		ctr.jm = jm
	}

	result := vm.NewCallResult()
	for {
		if len(ctr.outs) > 0 {
			ctr.emitted = ctr.outs[0]
			ctr.outs = ctr.outs[1:]
			result.Batch = ctr.emitted
			return result, nil
		}
		if ctr.state == ended {
			result.Status = vm.ExecStop
			return result, nil
		}

		res, err := vm.ChildrenCall(joining.Children[0], proc)
		if err != nil {
			return res, err
		}
		if res.Batch == nil {
			ctr.state = ended
			if joining.Counter != nil && joining.Counter.Decrement() {
				bats, err := joining.Joiner.Trailing(proc, joining.MaxRowCount)
				if err != nil {
					return result, err
				}
				ctr.outs = append(ctr.outs, bats...)
			}
			continue
		}
		if res.Batch.IsEmpty() {
			continue
		}

		bats, err := joining.Joiner.Probe(proc, res.Batch, joining.MaxRowCount)
		if err != nil {
			return result, err
		}
		ctr.outs = append(ctr.outs, bats...)
	}
}

// callTotals handles the totals branch: the totals row is truncated to
// one row, dropped when it was synthesized and the joiner adds
// nothing, and otherwise extended with the joiner's totals values.
func (joining *Joining) callTotals(proc *process.Process) (vm.CallResult, error) {
	ctr := &joining.ctr

	// the build may still be feeding the joiner its totals row, so
	// the totals branch clears the same barrier as the probes
	if !joining.Joiner.Filled() && !ctr.received {
		jm, err := message.ReceiveJoinMap(joining.JoinMapTag, proc.MessageBoard, proc.Ctx)
		if err != nil {
			return vm.CancelResult, err
		}
		ctr.received = true
		if jm == nil {
			return vm.CancelResult, nil
		}
		ctr.jm = jm
	}

	result := vm.NewCallResult()
	for {
		if len(ctr.outs) > 0 {
			ctr.emitted = ctr.outs[0]
			ctr.outs = ctr.outs[1:]
			result.Batch = ctr.emitted
			return result, nil
		}
		if ctr.state == ended {
			result.Status = vm.ExecStop
			return result, nil
		}

		res, err := vm.ChildrenCall(joining.Children[0], proc)
		if err != nil {
			return res, err
		}
		if res.Batch == nil {
			ctr.state = ended
			continue
		}
		if res.Batch.IsEmpty() {
			continue
		}

		if joining.DefaultTotals && !joining.Joiner.HasTotals() {
			// the row was synthesized and there is nothing to add
			continue
		}

		bat := res.Batch
		var win *batch.Batch
		if bat.RowCount() > 1 {
			if win, err = bat.Window(0, 1, proc.Mp()); err != nil {
				return result, err
			}
			bat = win
		}
		out, err := joining.Joiner.ApplyTotals(proc, bat)
		if win != nil {
			win.Clean(proc.Mp())
		}
		if err != nil {
			return result, err
		}
		ctr.outs = append(ctr.outs, out)
	}
}
