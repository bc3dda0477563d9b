// Copyright 2025 Rondo Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rondo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.True(t, cfg.auditLog)
	assert.Empty(t, cfg.owner)
	assert.Nil(t, cfg.yieldAdapter)
	assert.Nil(t, cfg.randomSource)
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithOwner("treasurer"),
		WithDataDir("/tmp/rondo"),
		WithYieldRatePPM(5),
		WithAuditLog(false),
	)
	assert.Equal(t, "treasurer", cfg.owner)
	assert.Equal(t, "/tmp/rondo", cfg.dataDir)
	assert.Equal(t, int64(5), cfg.yieldRatePPM)
	assert.False(t, cfg.auditLog)
}

func TestNewRequiresOwner(t *testing.T) {
	_, err := New(NewConfig())
	require.Error(t, err)
	_, err = New(NewConfig(WithOwner("treasurer")))
	require.NoError(t, err)
}

func TestNewRejectsNegativeYieldRate(t *testing.T) {
	_, err := New(NewConfig(
		WithOwner("treasurer"),
		WithYieldRatePPM(-1),
	))
	require.Error(t, err)
}
