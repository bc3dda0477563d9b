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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rondolabs/rondo/escrow"
	"github.com/rondolabs/rondo/event"
	"github.com/rondolabs/rondo/membership"
	"github.com/rondolabs/rondo/pot"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Record is one audit entry. Identifier columns are indexed so external
// tooling can query by pot, cycle, or member without a full scan.
type Record struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	EventType string `gorm:"index"`
	PotID     uint64 `gorm:"index"`
	CycleID   uint64 `gorm:"index"`
	Member    string `gorm:"index"`
	Amount    int64
	Detail    string
}

type AuditLogConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	// DataDir is where the sqlite database lives; empty means in-memory
	DataDir string
}

type subscription struct {
	eventType event.EventType
	id        event.EventSubscriberId
}

// AuditLog persists every bus event to a sqlite index. It is a passive
// consumer; a write failure is logged but never propagates back into the
// operation that produced the event.
type AuditLog struct {
	config        AuditLogConfig
	logger        *slog.Logger
	eventBus      *event.EventBus
	db            *gorm.DB
	subscriptions []subscription
	metrics       struct {
		recordsWritten prometheus.Counter
	}
}

// auditedEventTypes is every event type the audit log captures
var auditedEventTypes = []event.EventType{
	pot.PotCreatedEventType,
	pot.PotJoinedEventType,
	pot.PotLeftEventType,
	pot.PotPausedEventType,
	pot.PotResumedEventType,
	pot.CycleStartedEventType,
	pot.MemberPaidEventType,
	pot.BidPlacedEventType,
	pot.BidRefundedEventType,
	pot.BiddingClosedEventType,
	pot.RandomnessRequestedEventType,
	pot.WinnerDeclaredEventType,
	pot.InterestDistributedEventType,
	pot.CycleCompletedEventType,
	pot.EnginePausedEventType,
	pot.EngineUnpausedEventType,
	pot.OwnershipTransferredEventType,
	pot.EmergencyWithdrawalEventType,
	escrow.FundsDepositedEventType,
	escrow.FundsReleasedEventType,
	escrow.InterestHarvestedEventType,
	membership.MemberRegisteredEventType,
	membership.ReputationUpdatedEventType,
}

func New(config AuditLogConfig) (*AuditLog, error) {
	a := &AuditLog{
		config:   config,
		eventBus: config.EventBus,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		a.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		a.logger = config.Logger
	}
	if config.PromRegistry != nil {
		promautoFactory := promauto.With(config.PromRegistry)
		a.metrics.recordsWritten = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_audit_records_total",
				Help: "total audit records written",
			},
		)
	}
	var db *gorm.DB
	var err error
	if config.DataDir == "" {
		// Use in-memory database when no data directory is specified, useful for testing
		// cache=shared allows multiple connections to share the same in-memory database
		db, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(config.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(config.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(config.DataDir, "auditlog.sqlite")
		// WAL journal mode and no sync on write; audit records are
		// reconstructible from upstream state, so durability is best-effort
		connOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		db, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	a.db = db
	if err := a.db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	if a.eventBus != nil {
		for _, eventType := range auditedEventTypes {
			subId := a.eventBus.SubscribeFunc(eventType, a.handleEvent)
			a.subscriptions = append(
				a.subscriptions,
				subscription{eventType: eventType, id: subId},
			)
		}
	}
	return a, nil
}

func (a *AuditLog) handleEvent(evt event.Event) {
	record := toRecord(evt)
	if result := a.db.Create(&record); result.Error != nil {
		a.logger.Error(
			"writing audit record",
			"component", "auditlog",
			"event_type", record.EventType,
			"error", result.Error,
		)
		return
	}
	if a.metrics.recordsWritten != nil {
		a.metrics.recordsWritten.Inc()
	}
}

// toRecord flattens a typed event payload into the indexed record shape
func toRecord(evt event.Event) Record {
	record := Record{
		CreatedAt: evt.Timestamp,
		EventType: string(evt.Type),
	}
	switch data := evt.Data.(type) {
	case pot.PotCreatedEvent:
		record.PotID = data.PotID
		record.Member = data.Creator
		record.Amount = data.AmountPerCycle
		record.Detail = data.Name
	case pot.PotJoinedEvent:
		record.PotID = data.PotID
		record.Member = data.Member
	case pot.PotLeftEvent:
		record.PotID = data.PotID
		record.Member = data.Member
	case pot.PotPausedEvent:
		record.PotID = data.PotID
	case pot.PotResumedEvent:
		record.PotID = data.PotID
	case pot.CycleStartedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
	case pot.MemberPaidEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Member
		record.Amount = data.Amount
	case pot.BidPlacedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Bidder
		record.Amount = data.Amount
	case pot.BidRefundedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Bidder
		record.Amount = data.Amount
	case pot.BiddingClosedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
	case pot.RandomnessRequestedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Detail = data.RequestID
	case pot.WinnerDeclaredEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Winner
		record.Amount = data.Amount
		record.Detail = data.Method
	case pot.InterestDistributedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Amount = data.Total
	case pot.CycleCompletedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Winner
		record.Amount = data.Payout
	case pot.EnginePausedEvent:
		record.Member = data.By
	case pot.EngineUnpausedEvent:
		record.Member = data.By
	case pot.OwnershipTransferredEvent:
		record.Member = data.To
		record.Detail = data.From
	case pot.EmergencyWithdrawalEvent:
		record.Member = data.To
		record.Amount = data.Amount
	case escrow.FundsDepositedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Payer
		record.Amount = data.Amount
	case escrow.FundsReleasedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Member = data.Winner
		record.Amount = data.Amount
	case escrow.InterestHarvestedEvent:
		record.PotID = data.PotID
		record.CycleID = data.CycleID
		record.Amount = data.Amount
	case membership.MemberRegisteredEvent:
		record.Member = data.Member
		record.Amount = data.Reputation
	case membership.ReputationUpdatedEvent:
		record.Member = data.Member
		record.Amount = data.Delta
		record.Detail = data.Reason
	}
	return record
}

// RecordsByPot returns all audit records for a pot in insertion order
func (a *AuditLog) RecordsByPot(potID uint64) ([]Record, error) {
	var records []Record
	result := a.db.
		Where("pot_id = ?", potID).
		Order("id").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// RecordsByMember returns all audit records mentioning a member
func (a *AuditLog) RecordsByMember(member string) ([]Record, error) {
	var records []Record
	result := a.db.
		Where("member = ?", member).
		Order("id").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// RecordsByType returns all audit records of one event type
func (a *AuditLog) RecordsByType(eventType string) ([]Record, error) {
	var records []Record
	result := a.db.
		Where("event_type = ?", eventType).
		Order("id").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// Count returns the total number of audit records
func (a *AuditLog) Count() (int64, error) {
	var count int64
	result := a.db.Model(&Record{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// Close detaches from the event bus and closes the database
func (a *AuditLog) Close() error {
	if a.eventBus != nil {
		for _, sub := range a.subscriptions {
			a.eventBus.Unsubscribe(sub.eventType, sub.id)
		}
		a.subscriptions = nil
	}
	db, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}
