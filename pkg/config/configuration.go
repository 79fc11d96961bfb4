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

// Package config loads the engine's toml configuration.
package config

import (
	"context"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
)

const (
	// DefaultBatchRowLimit is the row cap of one pipeline batch.
	DefaultBatchRowLimit = 8192

	// DefaultMemoryLimit is the memory pool cap. default: 1 << 40 = 1099511627776
	DefaultMemoryLimit = 1 << 40
)

// EngineParameters of the join engine
type EngineParameters struct {
	//default is 8192. the count of rows one pipeline batch carries
	BatchRowLimit int `toml:"batchRowLimit"`

	//default is the logical core count. the branch count joins fan out to
	Parallelism int `toml:"parallelism"`

	//memory pool cap. default: 1 << 40 = 1099511627776
	MemoryLimit int64 `toml:"memoryLimit"`

	//the directory a storage-backed join keeps its store under. empty
	//means a fresh temporary directory per run
	StoragePath string `toml:"storagePath"`
}

// Configuration is the whole config file.
type Configuration struct {
	Engine EngineParameters  `toml:"engine"`
	Log    logutil.LogConfig `toml:"log"`
}

func (ep *EngineParameters) SetDefaults() {
	if ep.BatchRowLimit == 0 {
		ep.BatchRowLimit = DefaultBatchRowLimit
	}
	if ep.Parallelism == 0 {
		ep.Parallelism = runtime.NumCPU()
	}
	if ep.MemoryLimit == 0 {
		ep.MemoryLimit = DefaultMemoryLimit
	}
}

func (c *Configuration) SetDefaults() {
	c.Engine.SetDefaults()
}

func (ep *EngineParameters) validate() error {
	if ep.BatchRowLimit < 0 {
		return moerr.NewBadConfig(context.TODO(), "batchRowLimit %d is negative", ep.BatchRowLimit)
	}
	if ep.Parallelism < 0 {
		return moerr.NewBadConfig(context.TODO(), "parallelism %d is negative", ep.Parallelism)
	}
	if ep.MemoryLimit < 0 {
		return moerr.NewBadConfig(context.TODO(), "memoryLimit %d is negative", ep.MemoryLimit)
	}
	return nil
}

// Load reads path, fills defaults for whatever it leaves unset and
// validates the result.
func Load(path string) (*Configuration, error) {
	c := &Configuration{}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, moerr.NewBadConfig(context.TODO(), "%s: %s", path, err)
	}
	if err := c.Engine.validate(); err != nil {
		return nil, err
	}
	c.SetDefaults()
	return c, nil
}
