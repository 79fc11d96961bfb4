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

package vm

import (
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

type OpType int

const (
	ValueScan OpType = iota
	Connector
	Merge
	Dispatch
	Order
	HashBuild
	Join
	MergeJoin
)

var opNames = [...]string{
	ValueScan: "value_scan",
	Connector: "connector",
	Merge:     "merge",
	Dispatch:  "dispatch",
	Order:     "order",
	HashBuild: "hash_build",
	Join:      "join",
	MergeJoin: "merge_join",
}

func (t OpType) String() string {
	if int(t) < len(opNames) {
		return opNames[t]
	}
	return "unknown"
}

// Operator is one node of an execution tree. Call pulls the next
// result; a returned ExecStop or an error ends the stream.
type Operator interface {
	// String returns the string representation of an operator.
	String(buf *bytes.Buffer)

	// OpType returns the operator's type code.
	OpType() OpType

	// Prepare prepares an operator for execution.
	Prepare(proc *process.Process) error

	// Call calls an operator.
	Call(proc *process.Process) (CallResult, error)

	// Free releases all the memory an operator holds.
	// pipelineFailed marks the state of the pipeline when the method is
	// called.
	Free(proc *process.Process, pipelineFailed bool, err error)

	GetOperatorBase() *OperatorBase
}

type OperatorBase struct {
	Children []Operator
}

func (o *OperatorBase) NumChildren() int {
	return len(o.Children)
}

func (o *OperatorBase) AppendChild(child Operator) {
	o.Children = append(o.Children, child)
}

func (o *OperatorBase) SetChildren(children []Operator) {
	o.Children = children
}

func (o *OperatorBase) GetChildren(idx int) Operator {
	return o.Children[idx]
}

type ExecStatus int

const (
	ExecStop ExecStatus = iota
	ExecNext
	ExecHasMore
)

type CallResult struct {
	Status ExecStatus
	Batch  *batch.Batch
}

func NewCallResult() CallResult {
	return CallResult{
		Status: ExecNext,
	}
}

var CancelResult = CallResult{
	Status: ExecStop,
}

func CancelCheck(proc *process.Process) (error, bool) {
	select {
	case <-proc.Ctx.Done():
		return proc.Ctx.Err(), true
	default:
		return nil, false
	}
}

// ChildrenCall pulls the next result from child, honoring
// cancellation first.
func ChildrenCall(child Operator, proc *process.Process) (CallResult, error) {
	if err, isCancel := CancelCheck(proc); isCancel {
		return CancelResult, err
	}
	return child.Call(proc)
}
