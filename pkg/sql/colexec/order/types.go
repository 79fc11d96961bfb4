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

package order

import (
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ vm.Operator = new(Order)

// Order sorts its input ascending by the named key columns. With
// PrefixLen zero it buffers the whole input and sorts it. A non-zero
// PrefixLen promises the input already arrives sorted by the first
// PrefixLen keys; the operator then only sorts inside each run of
// equal prefix values and streams groups out as they complete.
type Order struct {
	Keys      []string
	PrefixLen int

	ctr container
	vm.OperatorBase
}

const (
	receiving = iota
	ended
)

type container struct {
	state  int
	keyIdx []int

	// rows of the group being accumulated (the whole input when
	// PrefixLen is zero)
	buf *batch.Batch

	// sorted batches waiting to be emitted, and the one currently
	// lent out
	outs    []*batch.Batch
	emitted *batch.Batch
}

func NewArgument() *Order {
	return &Order{}
}

func (order *Order) GetOperatorBase() *vm.OperatorBase {
	return &order.OperatorBase
}

func (order *Order) OpType() vm.OpType {
	return vm.Order
}

func (order *Order) Free(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &order.ctr
	if ctr.emitted != nil {
		ctr.emitted.Clean(proc.Mp())
		ctr.emitted = nil
	}
	for _, bat := range ctr.outs {
		bat.Clean(proc.Mp())
	}
	ctr.outs = nil
	if ctr.buf != nil {
		ctr.buf.Clean(proc.Mp())
		ctr.buf = nil
	}
}
