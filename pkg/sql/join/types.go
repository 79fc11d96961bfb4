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

// Package join holds the join operators a join step plugs into its
// pipelines. A Joiner owns the side-table state and the matching
// logic; the surrounding step and pipeline only decide where batches
// flow.
package join

import (
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// Side names one input of a join.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Shape tells the join step how to lay out its pipelines. Symmetric
// joiners consume both inputs through one merged stream, BuildProbe
// joiners first materialize the right input and then probe it with
// the left.
type Shape int

const (
	Symmetric Shape = iota
	BuildProbe
)

func (s Shape) String() string {
	if s == Symmetric {
		return "symmetric"
	}
	return "build-probe"
}

type JoinKind int

const (
	Inner JoinKind = iota
	LeftOuter
	RightOuter
	FullOuter
)

func (k JoinKind) String() string {
	switch k {
	case Inner:
		return "inner"
	case LeftOuter:
		return "left"
	case RightOuter:
		return "right"
	case FullOuter:
		return "full"
	}
	return "unknown"
}

// keepLeft reports whether unmatched left rows survive the join.
func (k JoinKind) keepLeft() bool {
	return k == LeftOuter || k == FullOuter
}

func (k JoinKind) keepRight() bool {
	return k == RightOuter || k == FullOuter
}

// Joiner is a join operator. One joiner instance is shared by every
// pipeline branch of its step; Probe and Trailing synchronize the
// bookkeeping they touch.
type Joiner interface {
	Name() string
	Kind() JoinKind
	Shape() Shape

	// Filled reports whether the right side is already materialized
	// inside the joiner, so no build pipeline is needed.
	Filled() bool

	// ResultSchema computes the output layout for a given left input:
	// the left columns followed by the right side's non-key columns.
	// The layout is remembered for Probe and Trailing.
	ResultSchema(left *schema.Schema) *schema.Schema

	// HasTotals reports whether the joiner carries its own totals row.
	HasTotals() bool

	// Build materializes the right side from the collected batches.
	// Only BuildProbe joiners that are not pre-filled support it.
	Build(proc *process.Process, bats []*batch.Batch) error

	// Probe joins one batch of left rows against the side table. The
	// result is cut into batches of at most limit rows.
	Probe(proc *process.Process, bat *batch.Batch, limit int) ([]*batch.Batch, error)

	// Trailing returns the unmatched right rows for right and full
	// outer kinds. It must be called at most once, after all probes.
	Trailing(proc *process.Process, limit int) ([]*batch.Batch, error)

	// ApplyTotals extends the pipeline's totals row with the joiner's
	// totals values, defaults for columns it cannot fill.
	ApplyTotals(proc *process.Process, bat *batch.Batch) (*batch.Batch, error)

	Free(proc *process.Process)
}

// resultSchema is the shared output layout rule: every left column,
// then the right columns that are not join keys.
func resultSchema(left, right *schema.Schema, rightKeys []string) *schema.Schema {
	attrs := make([]schema.Attribute, 0, left.Len()+right.Len())
	attrs = append(attrs, left.Attrs...)
	for _, attr := range right.Attrs {
		if !containsName(rightKeys, attr.Name) {
			attrs = append(attrs, attr)
		}
	}
	return schema.New(attrs...)
}

// payloadColumns returns the positions of right's non-key columns.
func payloadColumns(right *schema.Schema, rightKeys []string) []int {
	cols := make([]int, 0, right.Len())
	for i, attr := range right.Attrs {
		if !containsName(rightKeys, attr.Name) {
			cols = append(cols, i)
		}
	}
	return cols
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
