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

// WaitRegister is the receiving end of one pipeline edge. Upstream
// pushes batches into Ch, a nil batch marks end of stream. Receivers
// watch Ctx to stop early.
type WaitRegister struct {
	Ctx context.Context
	Ch  chan *batch.Batch
}

type Register struct {
	MergeReceivers []*WaitRegister
}

// Limitation caps the resource usage of one query.
type Limitation struct {
	// Size is the memory threshold in bytes
	Size int64
	// BatchRows is the max row count for one batch
	BatchRows int64
	// BatchSize is the max size for one batch
	BatchSize int64
}

// Process carries the runtime context of one pipeline: cancellation,
// the memory pool, limits and the receiving registers feeding its
// source operators.
type Process struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Reg Register
	Lim Limitation

	MessageBoard *message.MessageBoard

	mp *mpool.MPool
}
