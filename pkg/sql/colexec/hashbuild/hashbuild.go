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

package hashbuild

import (
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/common/hashmap"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/message"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

const (
	building = iota
	ended
)

func (hashBuild *HashBuild) String(buf *bytes.Buffer) {
	buf.WriteString("hash build")
}

func (hashBuild *HashBuild) Prepare(_ *process.Process) error {
	return nil
}

func (hashBuild *HashBuild) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	result := vm.NewCallResult()
	if hashBuild.ctr.state == ended {
		result.Status = vm.ExecStop
		return result, nil
	}

	for {
		res, err := vm.ChildrenCall(hashBuild.Children[0], proc)
		if err != nil {
			return res, err
		}
		if res.Batch == nil {
			break
		}
		if res.Batch.IsEmpty() {
			continue
		}
		bat, err := res.Batch.Dup(proc.Mp())
		if err != nil {
			return result, err
		}
		hashBuild.ctr.bats = append(hashBuild.ctr.bats, bat)
	}

	if err := hashBuild.Joiner.Build(proc, hashBuild.ctr.bats); err != nil {
		return result, err
	}
	for _, bat := range hashBuild.ctr.bats {
		bat.Clean(proc.Mp())
	}
	hashBuild.ctr.bats = nil

	// an optional second child carries the build side's totals row
	if len(hashBuild.Children) > 1 {
		if err := hashBuild.feedTotals(proc); err != nil {
			return result, err
		}
	}

	holder, ok := hashBuild.Joiner.(interface{ JoinMap() *hashmap.JoinMap })
	if !ok {
		return result, moerr.NewInternalError(proc.Ctx, "%s yields no join map to publish", hashBuild.Joiner.Name())
	}
	jm := holder.JoinMap()
	if hashBuild.ProbeCnt > 0 {
		jm.IncRef(int32(hashBuild.ProbeCnt))
	}
	message.SendMessage(message.JoinMapMsg{JoinMapPtr: jm, Tag: hashBuild.JoinMapTag}, proc.MessageBoard)

	hashBuild.ctr.state = ended
	result.Status = vm.ExecStop
	return result, nil
}

// feedTotals drains the totals child and hands the row to the joiner
// when it has a slot for one, truncated to a single row either way.
func (hashBuild *HashBuild) feedTotals(proc *process.Process) error {
	setter, hasSlot := hashBuild.Joiner.(interface {
		SetTotals(*process.Process, *batch.Batch) error
	})
	for {
		res, err := vm.ChildrenCall(hashBuild.Children[1], proc)
		if err != nil {
			return err
		}
		if res.Batch == nil {
			return nil
		}
		if res.Batch.IsEmpty() {
			continue
		}
		if !hasSlot {
			logutil.Debugf("%s takes no totals, build side totals row dropped", hashBuild.Joiner.Name())
			continue
		}
		bat := res.Batch
		var win *batch.Batch
		if bat.RowCount() > 1 {
			if win, err = bat.Window(0, 1, proc.Mp()); err != nil {
				return err
			}
			bat = win
		}
		err = setter.SetTotals(proc, bat)
		if win != nil {
			win.Clean(proc.Mp())
		}
		if err != nil {
			return err
		}
	}
}
