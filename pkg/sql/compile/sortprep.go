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

package compile

import (
	"fmt"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/order"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/pipeline"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ Step = new(SortPrepStep)

// SortPrepStep sorts one input of a sort-merge join by that side's
// join keys. It shares the joiner with the join step so it can read
// the keys and any sort order the input already arrives in.
type SortPrepStep struct {
	input *schema.Schema
	mj    *join.MergeJoin
	side  join.Side
	built bool
}

func NewSortPrepStep(input *schema.Schema, mj *join.MergeJoin, side join.Side) *SortPrepStep {
	return &SortPrepStep{
		input: input,
		mj:    mj,
		side:  side,
	}
}

// OutputSchema returns the input schema; sorting reorders rows only.
func (step *SortPrepStep) OutputSchema() *schema.Schema {
	return step.input
}

func (step *SortPrepStep) UpdateInputSchema(s *schema.Schema, idx int) error {
	if idx != 0 {
		return moerr.NewInternalErrorNoCtx("sort step has one input, no input %d", idx)
	}
	step.input = s
	return nil
}

func (step *SortPrepStep) Describe() string {
	return fmt.Sprintf("sorting for %s side of join", step.side)
}

func (step *SortPrepStep) Traits() Traits {
	return Traits{
		PreservesDistinct:   true,
		ReturnsSingleStream: true,
		PreservesRowCount:   true,
	}
}

// Materialize narrows the input to one branch and caps it with a sort
// by the join keys. When the input already arrives sorted by a prefix
// of those keys, the sort only runs inside each equal-prefix run.
func (step *SortPrepStep) Materialize(proc *process.Process, ins ...*pipeline.Pipeline) (*pipeline.Pipeline, error) {
	if step.built {
		return nil, moerr.NewInternalError(proc.Ctx, "sort step for the %s side materialized twice", step.side)
	}
	if len(ins) != 1 {
		return nil, moerr.NewInternalError(proc.Ctx, "sort step wants one input pipeline, got %d", len(ins))
	}
	step.built = true
	in := ins[0]

	keys := dedupKeys(step.mj.KeyNames(step.side))
	prefixLen := 0
	if prefix := step.mj.SortPrefix(step.side); len(prefix) > 0 {
		if isNamePrefix(prefix, keys) {
			prefixLen = len(prefix)
			logutil.Debugf("%s side arrives sorted by %v, finishing the sort inside runs", step.side, prefix)
		} else {
			logutil.Debugf("%s side sort prefix %v does not lead the keys %v, sorting in full", step.side, prefix, keys)
		}
	}

	if err := in.Resize(proc, 1); err != nil {
		return nil, err
	}
	err := in.AddTransform(nil, func(*schema.Schema, bool) vm.Operator {
		op := order.NewArgument()
		op.Keys = keys
		op.PrefixLen = prefixLen
		return op
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// dedupKeys drops repeated key names, keeping the first occurrence.
// Sorting twice by the same column changes nothing.
func dedupKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func isNamePrefix(prefix, keys []string) bool {
	if len(prefix) > len(keys) {
		return false
	}
	for i := range prefix {
		if prefix[i] != keys[i] {
			return false
		}
	}
	return true
}
