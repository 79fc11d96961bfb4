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
	"bytes"
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/google/btree"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

const dictTreeDegree = 32

type dictItem struct {
	key  []byte
	sels []int32
}

func (it *dictItem) Less(than btree.Item) bool {
	return bytes.Compare(it.key, than.(*dictItem).key) < 0
}

// DictJoin joins the left input against an in-memory dictionary of
// right rows, kept in a btree so lookups and the trailing walk both
// run in encoded key order.
type DictJoin struct {
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

	tree     *btree.BTree
	rightBat *batch.Batch
	totals   *batch.Batch

	mu      sync.Mutex
	matched *roaring64.Bitmap
}

var _ Joiner = (*DictJoin)(nil)

// NewDictJoin returns an empty dictionary joiner; Fill loads it
// before the join pipeline runs.
func NewDictJoin(kind JoinKind, leftKeys, rightKeys []string, right *schema.Schema) (*DictJoin, error) {
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, moerr.NewInvalidInput(context.TODO(), "dict join wants matching key lists, got %d left and %d right", len(leftKeys), len(rightKeys))
	}
	rightIdx, err := keyPositions(right, rightKeys)
	if err != nil {
		return nil, err
	}
	d := &DictJoin{
		kind:        kind,
		leftKeys:    leftKeys,
		rightKeys:   rightKeys,
		rightSchema: right,
		rightIdx:    rightIdx,
		rightCols:   payloadColumns(right, rightKeys),
		tree:        btree.New(dictTreeDegree),
		rightBat:    right.NewBatch(),
	}
	if kind.keepRight() {
		d.matched = roaring64.New()
	}
	return d, nil
}

func (d *DictJoin) Name() string {
	return "dict join"
}

func (d *DictJoin) Kind() JoinKind {
	return d.kind
}

func (d *DictJoin) Shape() Shape {
	return BuildProbe
}

func (d *DictJoin) Filled() bool {
	return true
}

func (d *DictJoin) HasTotals() bool {
	return d.totals != nil
}

// RowCount reports how many right rows the dictionary holds.
func (d *DictJoin) RowCount() int {
	return d.rightBat.RowCount()
}

func (d *DictJoin) ResultSchema(left *schema.Schema) *schema.Schema {
	leftIdx, err := keyPositions(left, d.leftKeys)
	if err != nil {
		d.bindErr = err
		return nil
	}
	d.left = left
	d.leftIdx = leftIdx
	d.bindErr = nil
	d.out = resultSchema(left, d.rightSchema, d.rightKeys)
	return d.out
}

// Fill loads one batch of right rows into the dictionary.
func (d *DictJoin) Fill(proc *process.Process, bat *batch.Batch) error {
	start := d.rightBat.RowCount()
	var err error
	if d.rightBat, err = d.rightBat.Append(proc.Ctx, proc.Mp(), bat); err != nil {
		return err
	}
	keyVecs := gatherVecs(bat.Vecs, d.rightIdx)
	for i := 0; i < bat.RowCount(); i++ {
		key, _ := EncodeKey(keyVecs, i)
		sel := int32(start + i)
		if v := d.tree.Get(&dictItem{key: key}); v != nil {
			it := v.(*dictItem)
			it.sels = append(it.sels, sel)
			continue
		}
		d.tree.ReplaceOrInsert(&dictItem{key: key, sels: []int32{sel}})
	}
	return nil
}

// SetTotals remembers the right side totals row; bat must carry one
// row in the right schema.
func (d *DictJoin) SetTotals(proc *process.Process, bat *batch.Batch) error {
	if bat.RowCount() != 1 || bat.VectorCount() != d.rightSchema.Len() {
		return moerr.NewInvalidInput(proc.Ctx, "dict join totals wants one row of %s", d.rightSchema)
	}
	totals, err := bat.Dup(proc.Mp())
	if err != nil {
		return err
	}
	if d.totals != nil {
		d.totals.Clean(proc.Mp())
	}
	d.totals = totals
	return nil
}

func (d *DictJoin) Build(proc *process.Process, _ []*batch.Batch) error {
	return moerr.NewInternalError(proc.Ctx, "dict join is filled before the query, not built")
}

func (d *DictJoin) Probe(proc *process.Process, bat *batch.Batch, limit int) ([]*batch.Batch, error) {
	if d.out == nil {
		if d.bindErr != nil {
			return nil, d.bindErr
		}
		return nil, moerr.NewInternalError(proc.Ctx, "dict join not bound to input schema")
	}
	em := newEmitter(d.out, d.left.Len(), limit, proc.Mp())
	defer em.free()

	keyVecs := gatherVecs(bat.Vecs, d.leftIdx)
	rowCount := bat.RowCount()
	for i := 0; i < rowCount; i++ {
		key, hasNull := EncodeKey(keyVecs, i)
		var sels []int32
		if !hasNull {
			if v := d.tree.Get(&dictItem{key: key}); v != nil {
				sels = v.(*dictItem).sels
			}
		}
		if len(sels) == 0 {
			if d.kind.keepLeft() {
				if err := em.joinedRow(bat, i, nil, -1, d.rightCols); err != nil {
					return nil, err
				}
			}
			continue
		}
		if d.matched != nil {
			d.mu.Lock()
			for _, sel := range sels {
				d.matched.Add(uint64(sel))
			}
			d.mu.Unlock()
		}
		for _, sel := range sels {
			if err := em.joinedRow(bat, i, d.rightBat, int(sel), d.rightCols); err != nil {
				return nil, err
			}
		}
	}
	return em.finish(), nil
}

// Trailing walks the dictionary in encoded key order and emits the
// rows no probe touched.
func (d *DictJoin) Trailing(proc *process.Process, limit int) ([]*batch.Batch, error) {
	if !d.kind.keepRight() {
		return nil, nil
	}
	if d.out == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "dict join not bound to input schema")
	}
	em := newEmitter(d.out, d.left.Len(), limit, proc.Mp())
	defer em.free()

	var walkErr error
	d.tree.Ascend(func(i btree.Item) bool {
		it := i.(*dictItem)
		for _, sel := range it.sels {
			if d.matched.Contains(uint64(sel)) {
				continue
			}
			if walkErr = em.joinedRow(nil, -1, d.rightBat, int(sel), d.rightCols); walkErr != nil {
				return false
			}
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return em.finish(), nil
}

func (d *DictJoin) ApplyTotals(proc *process.Process, bat *batch.Batch) (*batch.Batch, error) {
	return applyTotalsRow(proc, bat, d.rightSchema, d.rightCols, d.totals)
}

func (d *DictJoin) Free(proc *process.Process) {
	if d.rightBat != nil {
		d.rightBat.Clean(proc.Mp())
		d.rightBat = nil
	}
	if d.totals != nil {
		d.totals.Clean(proc.Mp())
		d.totals = nil
	}
	d.tree = nil
	d.matched = nil
}
