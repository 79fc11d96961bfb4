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
	"encoding/binary"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/cockroachdb/pebble"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
	"github.com/pierrec/lz4"
)

// Storage key layout: encoded join key, then a fixed 8 byte row id.
// The row encoding is prefix free, so a prefix scan on an encoded key
// touches exactly the rows with that key. Meta entries use a leading
// zero byte, which no encoded value starts with.
var (
	metaRowsKey   = []byte{0, 'r'}
	metaTotalsKey = []byte{0, 't'}
)

const (
	payloadRaw byte = iota
	payloadLZ4
)

// Values shorter than this are stored raw; lz4 framing would not pay
// for itself.
const compressThreshold = 64

// StorageJoin joins the left input against right rows persisted in a
// pebble store. The store is filled batch by batch before the join
// runs, survives reopening, and optionally carries a totals row.
type StorageJoin struct {
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

	db            *pebble.DB
	path          string
	rows          uint64
	totalsPayload []byte
	ht            []int

	mu      sync.Mutex
	matched *roaring64.Bitmap
}

var _ Joiner = (*StorageJoin)(nil)

// NewStorageJoin opens (or creates) the store at path and returns a
// filled joiner over it. A store filled by an earlier run keeps its
// rows and totals.
func NewStorageJoin(kind JoinKind, leftKeys, rightKeys []string, right *schema.Schema, path string) (*StorageJoin, error) {
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, moerr.NewInvalidInput(context.TODO(), "storage join wants matching key lists, got %d left and %d right", len(leftKeys), len(rightKeys))
	}
	rightIdx, err := keyPositions(right, rightKeys)
	if err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	s := &StorageJoin{
		kind:        kind,
		leftKeys:    leftKeys,
		rightKeys:   rightKeys,
		rightSchema: right,
		rightIdx:    rightIdx,
		rightCols:   payloadColumns(right, rightKeys),
		db:          db,
		path:        path,
	}
	if v, err := s.get(metaRowsKey); err != nil {
		db.Close()
		return nil, err
	} else if len(v) == 8 {
		s.rows = binary.BigEndian.Uint64(v)
	}
	if v, err := s.get(metaTotalsKey); err != nil {
		db.Close()
		return nil, err
	} else if v != nil {
		s.totalsPayload = v
	}
	if kind.keepRight() {
		s.matched = roaring64.New()
	}
	return s, nil
}

func (s *StorageJoin) Name() string {
	return "storage join"
}

func (s *StorageJoin) Kind() JoinKind {
	return s.kind
}

func (s *StorageJoin) Shape() Shape {
	return BuildProbe
}

func (s *StorageJoin) Filled() bool {
	return true
}

func (s *StorageJoin) HasTotals() bool {
	return s.totalsPayload != nil
}

// RowCount reports how many right rows the store holds.
func (s *StorageJoin) RowCount() uint64 {
	return s.rows
}

func (s *StorageJoin) ResultSchema(left *schema.Schema) *schema.Schema {
	leftIdx, err := keyPositions(left, s.leftKeys)
	if err != nil {
		s.bindErr = err
		return nil
	}
	s.left = left
	s.leftIdx = leftIdx
	s.bindErr = nil
	s.out = resultSchema(left, s.rightSchema, s.rightKeys)
	return s.out
}

// Fill persists one batch of right rows. Callers fill the store
// before the join pipeline runs.
func (s *StorageJoin) Fill(proc *process.Process, bat *batch.Batch) error {
	keyVecs := gatherVecs(bat.Vecs, s.rightIdx)
	payloadVecs := gatherVecs(bat.Vecs, s.rightCols)
	wb := s.db.NewBatch()
	defer wb.Close()
	var rowid [8]byte
	for i := 0; i < bat.RowCount(); i++ {
		key, _ := EncodeKey(keyVecs, i)
		binary.BigEndian.PutUint64(rowid[:], s.rows)
		k := make([]byte, 0, len(key)+8)
		k = append(k, key...)
		k = append(k, rowid[:]...)
		if err := wb.Set(k, s.compress(EncodeRow(payloadVecs, i)), nil); err != nil {
			return err
		}
		s.rows++
	}
	binary.BigEndian.PutUint64(rowid[:], s.rows)
	if err := wb.Set(metaRowsKey, rowid[:], nil); err != nil {
		return err
	}
	return wb.Commit(nil)
}

// SetTotals stores the right side totals row; bat must carry one row
// in the right schema.
func (s *StorageJoin) SetTotals(proc *process.Process, bat *batch.Batch) error {
	if bat.RowCount() != 1 || bat.VectorCount() != s.rightSchema.Len() {
		return moerr.NewInvalidInput(proc.Ctx, "storage join totals wants one row of %s", s.rightSchema)
	}
	payload := EncodeRow(bat.Vecs, 0)
	if err := s.db.Set(metaTotalsKey, payload, nil); err != nil {
		return err
	}
	s.totalsPayload = payload
	return nil
}

func (s *StorageJoin) Build(proc *process.Process, _ []*batch.Batch) error {
	return moerr.NewInternalError(proc.Ctx, "storage join is filled before the query, not built")
}

func (s *StorageJoin) Probe(proc *process.Process, bat *batch.Batch, limit int) ([]*batch.Batch, error) {
	if s.out == nil {
		if s.bindErr != nil {
			return nil, s.bindErr
		}
		return nil, moerr.NewInternalError(proc.Ctx, "storage join not bound to input schema")
	}
	em := newEmitter(s.out, s.left.Len(), limit, proc.Mp())
	defer em.free()

	keyVecs := gatherVecs(bat.Vecs, s.leftIdx)
	rowCount := bat.RowCount()
	for i := 0; i < rowCount; i++ {
		key, hasNull := EncodeKey(keyVecs, i)
		if hasNull {
			if s.kind.keepLeft() {
				if err := em.joinedRow(bat, i, nil, -1, s.rightCols); err != nil {
					return nil, err
				}
			}
			continue
		}
		found, err := s.probeKey(em, bat, i, key)
		if err != nil {
			return nil, err
		}
		if !found && s.kind.keepLeft() {
			if err := em.joinedRow(bat, i, nil, -1, s.rightCols); err != nil {
				return nil, err
			}
		}
	}
	return em.finish(), nil
}

func (s *StorageJoin) probeKey(em *emitter, bat *batch.Batch, row int, key []byte) (bool, error) {
	iter := s.db.NewIter(&pebble.IterOptions{
		LowerBound: key,
		UpperBound: upperBound(key),
	})
	found := false
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		payload, err := decompress(iter.Value())
		if err != nil {
			iter.Close()
			return false, err
		}
		if err := em.joinedRowPayload(bat, row, payload); err != nil {
			iter.Close()
			return false, err
		}
		if s.matched != nil {
			rowid := binary.BigEndian.Uint64(k[len(k)-8:])
			s.mu.Lock()
			s.matched.Add(rowid)
			s.mu.Unlock()
		}
		found = true
	}
	return found, iter.Close()
}

// Trailing walks the whole store in key order and emits the rows no
// probe touched.
func (s *StorageJoin) Trailing(proc *process.Process, limit int) ([]*batch.Batch, error) {
	if !s.kind.keepRight() {
		return nil, nil
	}
	if s.out == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "storage join not bound to input schema")
	}
	em := newEmitter(s.out, s.left.Len(), limit, proc.Mp())
	defer em.free()

	iter := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte{tagNull}})
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		rowid := binary.BigEndian.Uint64(k[len(k)-8:])
		if s.matched.Contains(rowid) {
			continue
		}
		payload, err := decompress(iter.Value())
		if err != nil {
			iter.Close()
			return nil, err
		}
		if err := em.joinedRowPayload(nil, -1, payload); err != nil {
			iter.Close()
			return nil, err
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return em.finish(), nil
}

func (s *StorageJoin) ApplyTotals(proc *process.Process, bat *batch.Batch) (*batch.Batch, error) {
	if s.totalsPayload == nil {
		return applyTotalsRow(proc, bat, s.rightSchema, s.rightCols, nil)
	}
	totals := s.rightSchema.NewBatch()
	defer totals.Clean(proc.Mp())
	if err := DecodeRowInto(s.totalsPayload, totals.Vecs, proc.Mp()); err != nil {
		return nil, err
	}
	totals.SetRowCount(1)
	return applyTotalsRow(proc, bat, s.rightSchema, s.rightCols, totals)
}

func (s *StorageJoin) Free(*process.Process) {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logutil.Errorf("storage join close %s: %v", s.path, err)
		}
		s.db = nil
	}
	s.matched = nil
}

func (s *StorageJoin) get(key []byte) ([]byte, error) {
	v, c, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := make([]byte, len(v))
	copy(r, v)
	c.Close()
	return r, nil
}

func (s *StorageJoin) compress(src []byte) []byte {
	if len(src) < compressThreshold {
		return append([]byte{payloadRaw}, src...)
	}
	if s.ht == nil {
		s.ht = make([]int, 1<<16)
	}
	dst := make([]byte, lz4.CompressBlockBound(len(src))+5)
	n, err := lz4.CompressBlock(src, dst[5:], s.ht)
	if err != nil || n == 0 || n >= len(src) {
		return append([]byte{payloadRaw}, src...)
	}
	dst[0] = payloadLZ4
	binary.BigEndian.PutUint32(dst[1:5], uint32(len(src)))
	return dst[:5+n]
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, moerr.NewInternalError(context.TODO(), "storage join payload empty")
	}
	switch data[0] {
	case payloadRaw:
		return data[1:], nil
	case payloadLZ4:
		if len(data) < 5 {
			return nil, moerr.NewInternalError(context.TODO(), "storage join payload truncated")
		}
		out := make([]byte, binary.BigEndian.Uint32(data[1:5]))
		n, err := lz4.UncompressBlock(data[5:], out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	}
	return nil, moerr.NewInternalError(context.TODO(), "storage join payload bad flag %d", data[0])
}

// upperBound is the tightest key strictly above every key sharing the
// prefix.
func upperBound(k []byte) []byte {
	u := make([]byte, len(k))
	copy(u, k)
	for i := len(u) - 1; i >= 0; i-- {
		u[i] = u[i] + 1
		if u[i] != 0 {
			return u[:i+1]
		}
	}
	return nil
}
