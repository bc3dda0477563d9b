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

package auditlog

import (
	"testing"
	"time"

	"github.com/rondolabs/rondo/escrow"
	"github.com/rondolabs/rondo/event"
	"github.com/rondolabs/rondo/membership"
	"github.com/rondolabs/rondo/pot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLog(t *testing.T, eventBus *event.EventBus) *AuditLog {
	t.Helper()
	a, err := New(AuditLogConfig{
		EventBus: eventBus,
		DataDir:  t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
	})
	return a
}

func TestRecordFromEvents(t *testing.T) {
	a := newTestAuditLog(t, nil)
	a.handleEvent(event.NewEvent(
		pot.MemberPaidEventType,
		pot.MemberPaidEvent{
			PotID:   1,
			CycleID: 2,
			Member:  "alice",
			Amount:  1_000_000,
		},
	))
	a.handleEvent(event.NewEvent(
		pot.WinnerDeclaredEventType,
		pot.WinnerDeclaredEvent{
			PotID:   1,
			CycleID: 2,
			Winner:  "alice",
			Method:  "auction",
			Amount:  2_800_000,
		},
	))
	a.handleEvent(event.NewEvent(
		escrow.FundsReleasedEventType,
		escrow.FundsReleasedEvent{
			PotID:   1,
			CycleID: 2,
			Winner:  "alice",
			Amount:  2_800_000,
		},
	))
	a.handleEvent(event.NewEvent(
		membership.ReputationUpdatedEventType,
		membership.ReputationUpdatedEvent{
			Member:   "alice",
			Reason:   "win",
			Delta:    25,
			NewScore: 150,
		},
	))

	count, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	records, err := a.RecordsByPot(1)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, string(pot.MemberPaidEventType), records[0].EventType)
	assert.Equal(t, "alice", records[0].Member)
	assert.Equal(t, int64(1_000_000), records[0].Amount)
	assert.Equal(t, "auction", records[1].Detail)

	records, err = a.RecordsByMember("alice")
	require.NoError(t, err)
	assert.Len(t, records, 4)

	records, err = a.RecordsByType(string(membership.ReputationUpdatedEventType))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "win", records[0].Detail)
	assert.Equal(t, int64(25), records[0].Amount)
	assert.Zero(t, records[0].PotID)
}

func TestRecordsFromEventBus(t *testing.T) {
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	a := newTestAuditLog(t, eventBus)

	eventBus.Publish(
		pot.PotCreatedEventType,
		event.NewEvent(
			pot.PotCreatedEventType,
			pot.PotCreatedEvent{
				PotID:          7,
				Creator:        "creator",
				Name:           "lunch club",
				AmountPerCycle: 1_000_000,
				CycleCount:     3,
			},
		),
	)

	// Bus delivery is asynchronous
	require.Eventually(
		t,
		func() bool {
			count, err := a.Count()
			return err == nil && count == 1
		},
		5*time.Second,
		10*time.Millisecond,
	)
	records, err := a.RecordsByPot(7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "lunch club", records[0].Detail)
	assert.Equal(t, "creator", records[0].Member)
}

func TestCloseDetaches(t *testing.T) {
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	a, err := New(AuditLogConfig{
		EventBus: eventBus,
		DataDir:  t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	// Publishing after close must not panic
	eventBus.Publish(
		pot.PotCreatedEventType,
		event.NewEvent(
			pot.PotCreatedEventType,
			pot.PotCreatedEvent{PotID: 1},
		),
	)
}
