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
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/message"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(HashBuild)

// HashBuild drains the build side of a join, hands the collected
// batches to the joiner and publishes the finished join map under
// JoinMapTag so the probe branches can start.
type HashBuild struct {
	Joiner     join.Joiner
	JoinMapTag int32
	// ProbeCnt is the number of branches waiting on the map, the
	// totals branch included; each takes one reference.
	ProbeCnt int

	ctr container
	vm.OperatorBase
}

type container struct {
	state int
	bats  []*batch.Batch
}

func NewArgument() *HashBuild {
	return &HashBuild{}
}

func (hashBuild *HashBuild) GetOperatorBase() *vm.OperatorBase {
	return &hashBuild.OperatorBase
}

func (hashBuild *HashBuild) OpType() vm.OpType {
	return vm.HashBuild
}

// Free releases whatever the build still holds. On failure it also
// posts the nil join map so probers blocked on the tag wake up.
func (hashBuild *HashBuild) Free(proc *process.Process, pipelineFailed bool, err error) {
	message.FinalizeJoinMapMessage(proc.MessageBoard, hashBuild.JoinMapTag, pipelineFailed, err)

	for _, bat := range hashBuild.ctr.bats {
		bat.Clean(proc.Mp())
	}
	hashBuild.ctr.bats = nil
}
