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

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// MergeJoin joins two inputs that arrive sorted by their key columns.
// It holds no state of its own; the merge join operator feeds both
// streams through a MergeState. Sort preparation records on the joiner
// which key prefix each input is already sorted by.
type MergeJoin struct {
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

	sortPrefix [2][]string
}

var _ Joiner = (*MergeJoin)(nil)

// NewMergeJoin returns a sort-merge joiner matching leftKeys against
// rightKeys. Both inputs must be sorted by their keys before rows are
// pushed; SortPrepStep arranges that.
func NewMergeJoin(kind JoinKind, leftKeys, rightKeys []string, right *schema.Schema) (*MergeJoin, error) {
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, moerr.NewInvalidInput(context.TODO(), "merge join wants matching key lists, got %d left and %d right", len(leftKeys), len(rightKeys))
	}
	rightIdx, err := keyPositions(right, rightKeys)
	if err != nil {
		return nil, err
	}
	return &MergeJoin{
		kind:        kind,
		leftKeys:    leftKeys,
		rightKeys:   rightKeys,
		rightSchema: right,
		rightIdx:    rightIdx,
		rightCols:   payloadColumns(right, rightKeys),
	}, nil
}

func (mj *MergeJoin) Name() string {
	return "merge join"
}

func (mj *MergeJoin) Kind() JoinKind {
	return mj.kind
}

func (mj *MergeJoin) Shape() Shape {
	return Symmetric
}

func (mj *MergeJoin) Filled() bool {
	return false
}

func (mj *MergeJoin) HasTotals() bool {
	return false
}

// KeyNames returns the join key columns of one side, in join order.
func (mj *MergeJoin) KeyNames(side Side) []string {
	if side == SideLeft {
		return mj.leftKeys
	}
	return mj.rightKeys
}

// SortPrefix returns the key prefix the given input is already sorted
// by, as recorded by SetSortPrefix. Empty means unsorted.
func (mj *MergeJoin) SortPrefix(side Side) []string {
	return mj.sortPrefix[side]
}

func (mj *MergeJoin) SetSortPrefix(side Side, keys []string) {
	mj.sortPrefix[side] = keys
}

func (mj *MergeJoin) ResultSchema(left *schema.Schema) *schema.Schema {
	leftIdx, err := keyPositions(left, mj.leftKeys)
	if err != nil {
		mj.bindErr = err
		return nil
	}
	for k := range leftIdx {
		lt := left.Attrs[leftIdx[k]].Typ
		rt := mj.rightSchema.Attrs[mj.rightIdx[k]].Typ
		if lt.Oid != rt.Oid {
			mj.bindErr = moerr.NewInternalError(context.TODO(), "merge join key %q type mismatch: %s vs %s", mj.leftKeys[k], lt, rt)
			return nil
		}
	}
	mj.left = left
	mj.leftIdx = leftIdx
	mj.bindErr = nil
	mj.out = resultSchema(left, mj.rightSchema, mj.rightKeys)
	return mj.out
}

func (mj *MergeJoin) Build(proc *process.Process, _ []*batch.Batch) error {
	return moerr.NewInternalError(proc.Ctx, "merge join is driven by its operator, not built")
}

func (mj *MergeJoin) Probe(proc *process.Process, _ *batch.Batch, _ int) ([]*batch.Batch, error) {
	return nil, moerr.NewInternalError(proc.Ctx, "merge join is driven by its operator, not probed")
}

// Trailing is a no-op: the merge emits unmatched rows of both sides
// in stream order.
func (mj *MergeJoin) Trailing(*process.Process, int) ([]*batch.Batch, error) {
	return nil, nil
}

func (mj *MergeJoin) ApplyTotals(proc *process.Process, bat *batch.Batch) (*batch.Batch, error) {
	return applyTotalsRow(proc, bat, mj.rightSchema, mj.rightCols, nil)
}

func (mj *MergeJoin) Free(*process.Process) {
}

type mergeInput struct {
	buf  *batch.Batch
	keys []*vector.Vector
	off  int
	done bool
}

func (in *mergeInput) avail() bool {
	return in.buf != nil && in.off < in.buf.RowCount()
}

// groupEnd finds the first buffered row past off whose key differs
// from the row at off. False means the group may continue into input
// not yet pushed.
func (in *mergeInput) groupEnd() (int, bool) {
	end := in.off + 1
	for end < in.buf.RowCount() && !hasNullAt(in.keys, end) && compareRows(in.keys, in.off, in.keys, end) == 0 {
		end++
	}
	if end == in.buf.RowCount() && !in.done {
		return 0, false
	}
	return end, true
}

func (in *mergeInput) compact(mp *mpool.MPool) {
	if in.buf != nil && in.off >= in.buf.RowCount() {
		in.buf.Clean(mp)
		in.buf = nil
		in.keys = nil
		in.off = 0
	}
}

// MergeState runs the merge between the two sorted inputs. The owning
// operator pushes batches for whichever side NeedSide reports until
// Finished; each push returns the output rows it completed. Rows whose
// key contains a null never match and surface only through the outer
// sides of the join.
type MergeState struct {
	mj *MergeJoin
	em *emitter
	mp *mpool.MPool

	in       [2]mergeInput
	need     Side
	finished bool
}

func NewMergeState(mj *MergeJoin, limit int, mp *mpool.MPool) (*MergeState, error) {
	if mj.out == nil {
		if mj.bindErr != nil {
			return nil, mj.bindErr
		}
		return nil, moerr.NewInternalError(context.TODO(), "merge join not bound to input schema")
	}
	return &MergeState{
		mj: mj,
		em: newEmitter(mj.out, mj.left.Len(), limit, mp),
		mp: mp,
	}, nil
}

// NeedSide reports which input the merge is blocked on. Only valid
// while Finished is false.
func (s *MergeState) NeedSide() Side {
	return s.need
}

func (s *MergeState) Finished() bool {
	return s.finished
}

// Push hands the merge one more batch of the given side, nil closing
// that side, and returns whatever output became complete.
func (s *MergeState) Push(proc *process.Process, side Side, bat *batch.Batch) ([]*batch.Batch, error) {
	if s.finished {
		return nil, moerr.NewInternalError(proc.Ctx, "merge join pushed after both sides finished")
	}
	in := &s.in[side]
	if bat == nil {
		in.done = true
	} else {
		if in.done {
			return nil, moerr.NewInternalError(proc.Ctx, "merge join %s side pushed after close", side)
		}
		if bat.RowCount() > 0 {
			var err error
			if in.buf, err = in.buf.Append(proc.Ctx, s.mp, bat); err != nil {
				return nil, err
			}
			idx := s.mj.leftIdx
			if side == SideRight {
				idx = s.mj.rightIdx
			}
			in.keys = gatherVecs(in.buf.Vecs, idx)
		}
	}
	if err := s.advance(proc); err != nil {
		return nil, err
	}
	if s.finished {
		return s.em.finish(), nil
	}
	return s.em.takeReady(), nil
}

func (s *MergeState) advance(proc *process.Process) error {
	l, r := &s.in[SideLeft], &s.in[SideRight]
	for {
		switch {
		case !l.avail() && !l.done:
			s.need = SideLeft
			l.compact(s.mp)
			return nil
		case !r.avail() && !r.done:
			s.need = SideRight
			r.compact(s.mp)
			return nil
		case !l.avail() && !r.avail():
			s.finished = true
			l.compact(s.mp)
			r.compact(s.mp)
			return nil
		case !l.avail():
			if s.mj.kind.keepRight() {
				if err := s.em.joinedRow(nil, -1, r.buf, r.off, s.mj.rightCols); err != nil {
					return err
				}
			}
			r.off++
		case !r.avail():
			if s.mj.kind.keepLeft() {
				if err := s.em.joinedRow(l.buf, l.off, nil, -1, s.mj.rightCols); err != nil {
					return err
				}
			}
			l.off++
		case hasNullAt(l.keys, l.off):
			if s.mj.kind.keepLeft() {
				if err := s.em.joinedRow(l.buf, l.off, nil, -1, s.mj.rightCols); err != nil {
					return err
				}
			}
			l.off++
		case hasNullAt(r.keys, r.off):
			if s.mj.kind.keepRight() {
				if err := s.em.joinedRow(nil, -1, r.buf, r.off, s.mj.rightCols); err != nil {
					return err
				}
			}
			r.off++
		default:
			cmp := compareRows(l.keys, l.off, r.keys, r.off)
			if cmp < 0 {
				if s.mj.kind.keepLeft() {
					if err := s.em.joinedRow(l.buf, l.off, nil, -1, s.mj.rightCols); err != nil {
						return err
					}
				}
				l.off++
				continue
			}
			if cmp > 0 {
				if s.mj.kind.keepRight() {
					if err := s.em.joinedRow(nil, -1, r.buf, r.off, s.mj.rightCols); err != nil {
						return err
					}
				}
				r.off++
				continue
			}
			lEnd, ok := l.groupEnd()
			if !ok {
				s.need = SideLeft
				return nil
			}
			rEnd, ok := r.groupEnd()
			if !ok {
				s.need = SideRight
				return nil
			}
			for i := l.off; i < lEnd; i++ {
				for j := r.off; j < rEnd; j++ {
					if err := s.em.joinedRow(l.buf, i, r.buf, j, s.mj.rightCols); err != nil {
						return err
					}
				}
			}
			l.off, r.off = lEnd, rEnd
		}
	}
}

func (s *MergeState) Free() {
	s.em.free()
	for i := range s.in {
		if s.in[i].buf != nil {
			s.in[i].buf.Clean(s.mp)
			s.in[i].buf = nil
			s.in[i].keys = nil
		}
	}
}

func hasNullAt(vecs []*vector.Vector, row int) bool {
	for _, vec := range vecs {
		if vec.IsNull(uint64(row)) {
			return true
		}
	}
	return false
}

// compareRows orders two rows by their key columns. Both rows must be
// free of nulls; types match column by column.
func compareRows(lvecs []*vector.Vector, lrow int, rvecs []*vector.Vector, rrow int) int {
	for k := range lvecs {
		if c := compareAt(lvecs[k], lrow, rvecs[k], rrow); c != 0 {
			return c
		}
	}
	return 0
}

func compareAt(lvec *vector.Vector, lrow int, rvec *vector.Vector, rrow int) int {
	switch lvec.GetType().Oid {
	case types.T_bool:
		a, b := vector.GetFixedAt[bool](lvec, lrow), vector.GetFixedAt[bool](rvec, rrow)
		if a == b {
			return 0
		}
		if !a {
			return -1
		}
		return 1
	case types.T_int32:
		return compareOrdered(vector.GetFixedAt[int32](lvec, lrow), vector.GetFixedAt[int32](rvec, rrow))
	case types.T_int64:
		return compareOrdered(vector.GetFixedAt[int64](lvec, lrow), vector.GetFixedAt[int64](rvec, rrow))
	case types.T_float64:
		return compareOrdered(vector.GetFixedAt[float64](lvec, lrow), vector.GetFixedAt[float64](rvec, rrow))
	case types.T_datetime:
		return compareOrdered(vector.GetFixedAt[types.Datetime](lvec, lrow), vector.GetFixedAt[types.Datetime](rvec, rrow))
	case types.T_varchar:
		return bytes.Compare(lvec.GetBytesAt(lrow), rvec.GetBytesAt(rrow))
	}
	return 0
}

type ordered interface {
	~int32 | ~int64 | ~float64
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
