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

	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// String walks the tree under op and writes the operator chain in
// execution order to show a query plan.
func String(op Operator, buf *bytes.Buffer) {
	for _, child := range op.GetOperatorBase().Children {
		String(child, buf)
		buf.WriteString(" -> ")
	}
	op.String(buf)
}

// Prepare readies the tree under op bottom-up.
func Prepare(op Operator, proc *process.Process) error {
	for _, child := range op.GetOperatorBase().Children {
		if err := Prepare(child, proc); err != nil {
			return err
		}
	}
	return op.Prepare(proc)
}

// Free releases the tree under op bottom-up.
func Free(op Operator, proc *process.Process, pipelineFailed bool, err error) {
	for _, child := range op.GetOperatorBase().Children {
		Free(child, proc, pipelineFailed, err)
	}
	op.Free(proc, pipelineFailed, err)
}
