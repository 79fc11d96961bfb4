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

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/config"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/value_scan"
	"github.com/matrixorigin/matrixflow/pkg/sql/compile"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm/pipeline"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// SideSpec describes one input file of the join.
type SideSpec struct {
	//path of the side's csv file
	Path string `toml:"path"`

	//column layout, one "name:type" entry per csv field
	Columns []string `toml:"columns"`

	//join key column names
	Keys []string `toml:"keys"`

	//key prefix the file already arrives sorted by. only merge joins use it
	SortedBy []string `toml:"sortedBy"`

	//optional csv carrying this side's one totals row
	Totals string `toml:"totals"`
}

// Job is the [job] section of the config file.
type Job struct {
	//default is inner. one of inner, left, right, full
	Kind string `toml:"kind"`

	//default is hash. one of hash, merge, dict, storage
	Algorithm string `toml:"algorithm"`

	//keep the left file's row order through a build-probe join
	KeepLeftOrder bool `toml:"keepLeftOrder"`

	Left  SideSpec `toml:"left"`
	Right SideSpec `toml:"right"`
}

func loadJob(path string) (*Job, error) {
	aux := struct {
		Job Job `toml:"job"`
	}{}
	if _, err := toml.DecodeFile(path, &aux); err != nil {
		return nil, moerr.NewBadConfig(context.TODO(), "%s: %s", path, err)
	}
	j := &aux.Job
	if j.Kind == "" {
		j.Kind = "inner"
	}
	if j.Algorithm == "" {
		j.Algorithm = "hash"
	}
	if j.Left.Path == "" || j.Right.Path == "" {
		return nil, moerr.NewBadConfig(context.TODO(), "the job wants csv paths for both sides")
	}
	return j, nil
}

func parseColumns(cols []string) ([]string, []types.Type, error) {
	names := make([]string, 0, len(cols))
	typs := make([]types.Type, 0, len(cols))
	for _, col := range cols {
		name, typeName, ok := strings.Cut(col, ":")
		if !ok || name == "" {
			return nil, nil, moerr.NewBadConfig(context.TODO(), "column %q wants the name:type form", col)
		}
		oid, err := types.TypeOfName(typeName)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		typs = append(typs, types.New(oid))
	}
	return names, typs, nil
}

func (s *SideSpec) schema() (*schema.Schema, error) {
	if len(s.Columns) == 0 {
		return nil, moerr.NewBadConfig(context.TODO(), "%s has no columns", s.Path)
	}
	names, typs, err := parseColumns(s.Columns)
	if err != nil {
		return nil, err
	}
	return schema.NewWithNames(names, typs), nil
}

func (j *Job) joinKind() (join.JoinKind, error) {
	switch j.Kind {
	case "inner":
		return join.Inner, nil
	case "left":
		return join.LeftOuter, nil
	case "right":
		return join.RightOuter, nil
	case "full":
		return join.FullOuter, nil
	}
	return 0, moerr.NewBadConfig(context.TODO(), "unknown join kind %q", j.Kind)
}

// plan is a materialized pipeline ready to run, plus whatever the run
// must release afterwards.
type plan struct {
	p        *pipeline.Pipeline
	describe string
	cleanup  func()
}

func buildPlan(proc *process.Process, eng *config.EngineParameters, job *Job) (_ *plan, err error) {
	leftSch, err := job.Left.schema()
	if err != nil {
		return nil, err
	}
	rightSch, err := job.Right.schema()
	if err != nil {
		return nil, err
	}
	kind, err := job.joinKind()
	if err != nil {
		return nil, err
	}

	left, err := newSourcePipeline(proc, leftSch, &job.Left, eng.BatchRowLimit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			left.Dispose(proc)
		}
	}()

	switch job.Algorithm {
	case "hash", "merge":
		return buildTwoSidePlan(proc, eng, job, kind, leftSch, rightSch, left)
	case "dict", "storage":
		return buildFilledPlan(proc, eng, job, kind, leftSch, rightSch, left)
	}
	return nil, moerr.NewBadConfig(context.TODO(), "unknown join algorithm %q", job.Algorithm)
}

func buildTwoSidePlan(proc *process.Process, eng *config.EngineParameters, job *Job,
	kind join.JoinKind, leftSch, rightSch *schema.Schema, left *pipeline.Pipeline) (_ *plan, err error) {
	right, err := newSourcePipeline(proc, rightSch, &job.Right, eng.BatchRowLimit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			right.Dispose(proc)
		}
	}()

	var j join.Joiner
	var mj *join.MergeJoin
	if job.Algorithm == "merge" {
		if job.Left.Totals != "" || job.Right.Totals != "" {
			return nil, moerr.NewBadConfig(context.TODO(), "merge joins take no totals rows")
		}
		if mj, err = join.NewMergeJoin(kind, job.Left.Keys, job.Right.Keys, rightSch); err != nil {
			return nil, err
		}
		mj.SetSortPrefix(join.SideLeft, job.Left.SortedBy)
		mj.SetSortPrefix(join.SideRight, job.Right.SortedBy)
		j = mj
	} else {
		if j, err = join.NewHashJoin(kind, job.Left.Keys, job.Right.Keys, rightSch); err != nil {
			return nil, err
		}
		if err = addSideTotals(proc, left, leftSch, job.Left.Totals); err != nil {
			return nil, err
		}
		if err = addSideTotals(proc, right, rightSch, job.Right.Totals); err != nil {
			return nil, err
		}
	}

	step := compile.NewJoinStep(leftSch, rightSch, j, eng.BatchRowLimit, eng.Parallelism, job.KeepLeftOrder)
	if mj != nil {
		if left, err = compile.NewSortPrepStep(leftSch, mj, join.SideLeft).Materialize(proc, left); err != nil {
			return nil, err
		}
		if right, err = compile.NewSortPrepStep(rightSch, mj, join.SideRight).Materialize(proc, right); err != nil {
			return nil, err
		}
	}
	p, err := step.Materialize(proc, left, right)
	if err != nil {
		return nil, err
	}
	// the join step closer frees the joiner with the pipeline
	return &plan{p: p, describe: step.Describe(), cleanup: func() {}}, nil
}

func buildFilledPlan(proc *process.Process, eng *config.EngineParameters, job *Job,
	kind join.JoinKind, leftSch, rightSch *schema.Schema, left *pipeline.Pipeline) (_ *plan, err error) {
	if job.KeepLeftOrder {
		logutil.Debugf("a filled join keeps the left order by itself, keepLeftOrder changes nothing")
	}

	var j interface {
		join.Joiner
		Fill(*process.Process, *batch.Batch) error
		SetTotals(*process.Process, *batch.Batch) error
	}
	cleanup := func() {}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()
	switch job.Algorithm {
	case "dict":
		d, derr := join.NewDictJoin(kind, job.Left.Keys, job.Right.Keys, rightSch)
		if derr != nil {
			return nil, derr
		}
		j = d
		cleanup = func() { d.Free(proc) }
	default:
		dir := eng.StoragePath
		if dir == "" {
			if dir, err = os.MkdirTemp("", "flow-join-*"); err != nil {
				return nil, err
			}
		}
		s, serr := join.NewStorageJoin(kind, job.Left.Keys, job.Right.Keys, rightSch,
			filepath.Join(dir, "right-store"))
		if serr != nil {
			if eng.StoragePath == "" {
				os.RemoveAll(dir)
			}
			return nil, serr
		}
		j = s
		cleanup = func() {
			s.Free(proc)
			if eng.StoragePath == "" {
				os.RemoveAll(dir)
			}
		}
	}

	if err = fillFromCSV(proc, j.Fill, rightSch, job.Right.Path, eng.BatchRowLimit); err != nil {
		return nil, err
	}
	if job.Right.Totals != "" {
		tb, terr := readTotalsRow(proc, rightSch, job.Right.Totals)
		if terr != nil {
			return nil, terr
		}
		err = j.SetTotals(proc, tb)
		tb.Clean(proc.Mp())
		if err != nil {
			return nil, err
		}
	}
	if err = addSideTotals(proc, left, leftSch, job.Left.Totals); err != nil {
		return nil, err
	}

	step, err := compile.NewFilledJoinStep(leftSch, j, eng.BatchRowLimit)
	if err != nil {
		return nil, err
	}
	p, err := step.Materialize(proc, left)
	if err != nil {
		return nil, err
	}
	// the filled side belongs to the caller, so the plan frees it
	// after the run instead of a pipeline closer
	return &plan{p: p, describe: step.Describe(), cleanup: cleanup}, nil
}

func newSourcePipeline(proc *process.Process, sch *schema.Schema, side *SideSpec, rowLimit int) (*pipeline.Pipeline, error) {
	bats, err := readBatches(proc, sch, side.Path, rowLimit)
	if err != nil {
		return nil, err
	}
	src := value_scan.NewArgument()
	src.Batchs = bats
	p, err := pipeline.New(proc, sch, src)
	if err != nil {
		for _, bat := range bats {
			bat.Clean(proc.Mp())
		}
		return nil, err
	}
	return p, nil
}

func addSideTotals(proc *process.Process, p *pipeline.Pipeline, sch *schema.Schema, path string) error {
	if path == "" {
		return nil
	}
	tb, err := readTotalsRow(proc, sch, path)
	if err != nil {
		return err
	}
	src := value_scan.NewArgument()
	src.Batchs = []*batch.Batch{tb}
	if err := p.AddTotals(proc, src); err != nil {
		tb.Clean(proc.Mp())
		return err
	}
	return nil
}
