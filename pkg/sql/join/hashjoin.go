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

package join

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	hll "github.com/axiomhq/hyperloglog"
	"github.com/matrixorigin/matrixflow/pkg/common/hashmap"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// HashJoin joins two inputs by equality on their key columns. The right
// input is collected into an in-memory hash table keyed by the encoded
// key columns, then left rows probe the table one batch at a time.
type HashJoin struct {
	kind      JoinKind
	leftKeys  []string
	rightKeys []string

	rightSchema *schema.Schema
	left        *schema.Schema
	out         *schema.Schema
	bindErr     error
	leftIdx     []int
	rightIdx    []int
	rightCols   []int

	buildBat *batch.Batch
	jm       *hashmap.JoinMap

	mu      sync.Mutex
	matched *roaring64.Bitmap
}

var _ Joiner = (*HashJoin)(nil)

// NewHashJoin returns a hash joiner matching leftKeys against rightKeys.
// The right schema is fixed at construction; the left schema is bound
// later through ResultSchema.
func NewHashJoin(kind JoinKind, leftKeys, rightKeys []string, right *schema.Schema) (*HashJoin, error) {
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, moerr.NewInvalidInput(context.TODO(), "hash join wants matching key lists, got %d left and %d right", len(leftKeys), len(rightKeys))
	}
	rightIdx, err := keyPositions(right, rightKeys)
	if err != nil {
		return nil, err
	}
	return &HashJoin{
		kind:        kind,
		leftKeys:    leftKeys,
		rightKeys:   rightKeys,
		rightSchema: right,
		rightIdx:    rightIdx,
		rightCols:   payloadColumns(right, rightKeys),
	}, nil
}

func (h *HashJoin) Name() string {
	return "hash join"
}

func (h *HashJoin) Kind() JoinKind {
	return h.kind
}

func (h *HashJoin) Shape() Shape {
	return BuildProbe
}

func (h *HashJoin) Filled() bool {
	return false
}

func (h *HashJoin) HasTotals() bool {
	return false
}

func (h *HashJoin) LeftKeys() []string {
	return h.leftKeys
}

func (h *HashJoin) RightKeys() []string {
	return h.rightKeys
}

func (h *HashJoin) ResultSchema(left *schema.Schema) *schema.Schema {
	leftIdx, err := keyPositions(left, h.leftKeys)
	if err != nil {
		h.bindErr = err
		return nil
	}
	h.left = left
	h.leftIdx = leftIdx
	h.bindErr = nil
	h.out = resultSchema(left, h.rightSchema, h.rightKeys)
	return h.out
}

// Build consumes the collected right-side batches and builds the hash
// table. A first pass sketches the key cardinality so the table can be
// sized once, the second pass fills it.
func (h *HashJoin) Build(proc *process.Process, bats []*batch.Batch) error {
	if h.buildBat != nil {
		return moerr.NewInternalError(proc.Ctx, "hash join built twice")
	}
	h.buildBat = h.rightSchema.NewBatch()
	for _, bat := range bats {
		var err error
		if h.buildBat, err = h.buildBat.Append(proc.Ctx, proc.Mp(), bat); err != nil {
			return err
		}
	}
	keyVecs := gatherVecs(h.buildBat.Vecs, h.rightIdx)
	rowCount := h.buildBat.RowCount()

	sk := hll.New()
	for i := 0; i < rowCount; i++ {
		if key, hasNull := EncodeKey(keyVecs, i); !hasNull {
			sk.Insert(key)
		}
	}
	logutil.Debugf("hash join build: %d rows, ~%d distinct keys", rowCount, sk.Estimate())

	m := hashmap.NewStrHashMap(sk.Estimate(), proc.Mp())
	sels := make([][]int32, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		key, hasNull := EncodeKey(keyVecs, i)
		if hasNull {
			continue
		}
		group, isNew, err := m.Insert(key)
		if err != nil {
			m.Free()
			return err
		}
		if isNew {
			sels = append(sels, make([]int32, 0, 1))
		}
		sels[group-1] = append(sels[group-1], int32(i))
	}
	h.jm = hashmap.NewJoinMap(sels, m)
	h.jm.SetRowCount(int64(rowCount))
	if h.kind.keepRight() {
		h.matched = roaring64.New()
	}
	return nil
}

// JoinMap exposes the built table so it can be shared across probe
// streams. Callers manage the reference count.
func (h *HashJoin) JoinMap() *hashmap.JoinMap {
	return h.jm
}

func (h *HashJoin) Probe(proc *process.Process, bat *batch.Batch, limit int) ([]*batch.Batch, error) {
	if h.out == nil {
		if h.bindErr != nil {
			return nil, h.bindErr
		}
		return nil, moerr.NewInternalError(proc.Ctx, "hash join not bound to input schema")
	}
	if h.jm == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "hash join probed before build")
	}
	em := newEmitter(h.out, h.left.Len(), limit, proc.Mp())
	defer em.free()

	keyVecs := gatherVecs(bat.Vecs, h.leftIdx)
	rowCount := bat.RowCount()
	for i := 0; i < rowCount; i++ {
		key, hasNull := EncodeKey(keyVecs, i)
		var sels []int32
		if !hasNull {
			sels = h.jm.Find(key)
		}
		if len(sels) == 0 {
			if h.kind.keepLeft() {
				if err := em.joinedRow(bat, i, nil, -1, h.rightCols); err != nil {
					return nil, err
				}
			}
			continue
		}
		if h.matched != nil {
			h.mu.Lock()
			for _, sel := range sels {
				h.matched.Add(uint64(sel))
			}
			h.mu.Unlock()
		}
		for _, sel := range sels {
			if err := em.joinedRow(bat, i, h.buildBat, int(sel), h.rightCols); err != nil {
				return nil, err
			}
		}
	}
	return em.finish(), nil
}

// Trailing emits the unmatched right rows for right and full joins. It
// must run once, after every probe stream has finished.
func (h *HashJoin) Trailing(proc *process.Process, limit int) ([]*batch.Batch, error) {
	if !h.kind.keepRight() {
		return nil, nil
	}
	if h.out == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "hash join not bound to input schema")
	}
	if h.jm == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "hash join trailing before build")
	}
	em := newEmitter(h.out, h.left.Len(), limit, proc.Mp())
	defer em.free()

	rowCount := h.buildBat.RowCount()
	for i := 0; i < rowCount; i++ {
		if h.matched.Contains(uint64(i)) {
			continue
		}
		if err := em.joinedRow(nil, -1, h.buildBat, i, h.rightCols); err != nil {
			return nil, err
		}
	}
	return em.finish(), nil
}

func (h *HashJoin) ApplyTotals(proc *process.Process, bat *batch.Batch) (*batch.Batch, error) {
	return applyTotalsRow(proc, bat, h.rightSchema, h.rightCols, nil)
}

func (h *HashJoin) Free(proc *process.Process) {
	if h.buildBat != nil {
		h.buildBat.Clean(proc.Mp())
		h.buildBat = nil
	}
	if h.jm != nil {
		h.jm.Free()
		h.jm = nil
	}
	h.matched = nil
}
