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

package process

import (
	"context"

	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/vm/message"
)

const DefaultBatchSize = 8192

// New builds a top process over ctx. Cancelling the returned process
// stops every operator running under it.
func New(ctx context.Context, mp *mpool.MPool) *Process {
	ctx, cancel := context.WithCancel(ctx)
	return &Process{
		Ctx:          ctx,
		Cancel:       cancel,
		MessageBoard: message.NewMessageBoard(),
		mp:           mp,
		Lim: Limitation{
			BatchRows: DefaultBatchSize,
		},
	}
}

// NewFromProc derives a child process sharing proc's pool, limits and
// message board, with regCnt fresh merge receivers under the child's
// context.
func NewFromProc(proc *Process, ctx context.Context, regCnt int) *Process {
	ctx, cancel := context.WithCancel(ctx)
	p := &Process{
		Ctx:          ctx,
		Cancel:       cancel,
		MessageBoard: proc.MessageBoard,
		mp:           proc.mp,
		Lim:          proc.Lim,
	}
	p.Reg.MergeReceivers = make([]*WaitRegister, regCnt)
	for i := 0; i < regCnt; i++ {
		p.Reg.MergeReceivers[i] = &WaitRegister{
			Ctx: ctx,
			Ch:  make(chan *batch.Batch, 1),
		}
	}
	return p
}

// fallback pool for calls without a process, test only
var xxxProcMp = mpool.MustNewZero()

func (proc *Process) GetMPool() *mpool.MPool {
	if proc == nil {
		return xxxProcMp
	}
	return proc.mp
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.GetMPool()
}

// CleanChannel drains pending batches left behind by a stopped
// consumer.
func (wreg *WaitRegister) CleanChannel(m *mpool.MPool) {
	for len(wreg.Ch) > 0 {
		bat := <-wreg.Ch
		if bat != nil {
			bat.Clean(m)
		}
	}
}
