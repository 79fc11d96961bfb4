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

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[engine]
batchRowLimit = 1024
parallelism = 3
storagePath = "/var/lib/flow"

[log]
level = "debug"
format = "json"
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1024, c.Engine.BatchRowLimit)
	require.Equal(t, 3, c.Engine.Parallelism)
	require.Equal(t, "/var/lib/flow", c.Engine.StoragePath)
	require.Equal(t, int64(DefaultMemoryLimit), c.Engine.MemoryLimit)
	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, "json", c.Log.Format)
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, DefaultBatchRowLimit, c.Engine.BatchRowLimit)
	require.Equal(t, runtime.NumCPU(), c.Engine.Parallelism)
	require.Equal(t, int64(DefaultMemoryLimit), c.Engine.MemoryLimit)
	require.Equal(t, "", c.Engine.StoragePath)
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(writeConfig(t, "not toml ["))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	_, err = Load(writeConfig(t, "[engine]\nparallelism = -1\n"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}
