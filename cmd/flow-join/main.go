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

// flow-join joins two csv files through a streaming pipeline and
// writes the joined rows as csv on stdout. One toml file configures
// both the engine and the job:
//
//	[engine]
//	parallelism = 4
//
//	[job]
//	kind = "inner"
//	algorithm = "hash"
//
//	[job.left]
//	path = "users.csv"
//	columns = ["id:int64", "name:varchar"]
//	keys = ["id"]
//
//	[job.right]
//	path = "scores.csv"
//	columns = ["id:int64", "score:float64"]
//	keys = ["id"]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/config"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s jobFile\n", os.Args[0])
		os.Exit(2)
	}
	if err := run(flag.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "flow-join: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logutil.SetupMOLogger(&cfg.Log)
	job, err := loadJob(path)
	if err != nil {
		return err
	}

	mp, err := mpool.NewMPool("flow-join", cfg.Engine.MemoryLimit)
	if err != nil {
		return err
	}
	proc := process.New(context.Background(), mp)

	start := time.Now()
	pl, err := buildPlan(proc, &cfg.Engine, job)
	if err != nil {
		return err
	}
	defer pl.cleanup()

	sink := newCSVSink(w, pl.p.Schema())
	if err := pl.p.Run(proc, sink.deliver); err != nil {
		return err
	}
	if err := sink.finish(); err != nil {
		return err
	}
	logutil.Infof("%s: %d rows out, %d totals, %s elapsed",
		pl.describe, sink.rows, len(sink.totals), time.Since(start))
	return nil
}
