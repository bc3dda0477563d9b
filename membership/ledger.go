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

package membership

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rondolabs/rondo/event"
)

// Reputation deltas applied by the authorized write surface
const (
	InitialReputation       = 100
	ReputationParticipation = 10
	ReputationBid           = 5
	ReputationWin           = 25
)

var (
	ErrAlreadyRegistered   = errors.New("member already registered")
	ErrNotRegistered       = errors.New("member not registered")
	ErrNotAuthorized       = errors.New("caller not authorized")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrAlreadyAuthorized   = errors.New("caller already authorized")
	ErrCallerNotFound      = errors.New("caller not on allowlist")
	ErrAlreadyMarkedWinner = errors.New("winner already marked for cycle")
)

// Profile is the per-member reputation and participation record
type Profile struct {
	Member             string
	RegisteredAt       time.Time
	CyclesParticipated int
	CyclesWon          int
	TotalContributed   int64
	Reputation         int64
	CreatedPots        []uint64
	JoinedPots         []uint64
}

// CycleRecord is one member's activity within a single cycle
type CycleRecord struct {
	PotID     uint64
	CycleID   uint64
	Paid      bool
	Amount    int64
	HasBid    bool
	BidAmount int64
	Won       bool
}

type cycleKey struct {
	potID   uint64
	cycleID uint64
}

type LedgerConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Owner        string
}

// Ledger owns member profiles and the allowlist that gates every
// cross-component write. Only allowlisted callers may mutate profiles;
// allowlist management itself is owner-only.
type Ledger struct {
	config     LedgerConfig
	logger     *slog.Logger
	eventBus   *event.EventBus
	owner      string
	authorized map[string]bool
	profiles   map[string]*Profile
	history    map[string]map[uint64][]*CycleRecord
	winners    map[cycleKey]string
	metrics    struct {
		membersRegistered prometheus.Counter
		reputationUpdates prometheus.Counter
	}
	mu sync.RWMutex
}

func NewLedger(config LedgerConfig) *Ledger {
	l := &Ledger{
		config:     config,
		eventBus:   config.EventBus,
		owner:      config.Owner,
		authorized: make(map[string]bool),
		profiles:   make(map[string]*Profile),
		history:    make(map[string]map[uint64][]*CycleRecord),
		winners:    make(map[cycleKey]string),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		l.logger = config.Logger
	}
	if config.PromRegistry != nil {
		promautoFactory := promauto.With(config.PromRegistry)
		l.metrics.membersRegistered = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_members_registered_total",
				Help: "total members registered",
			},
		)
		l.metrics.reputationUpdates = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_reputation_updates_total",
				Help: "total reputation updates applied",
			},
		)
	}
	return l
}

// AddAuthorizedCaller grants a caller the right to mutate member profiles.
// This is the sole mechanism by which cross-component write trust is granted.
func (l *Ledger) AddAuthorizedCaller(caller string, newCaller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotOwner
	}
	if l.authorized[newCaller] {
		return ErrAlreadyAuthorized
	}
	l.authorized[newCaller] = true
	l.logger.Info(
		"authorized caller added",
		"component", "membership",
		"caller", newCaller,
	)
	return nil
}

func (l *Ledger) RemoveAuthorizedCaller(caller string, oldCaller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotOwner
	}
	if !l.authorized[oldCaller] {
		return ErrCallerNotFound
	}
	delete(l.authorized, oldCaller)
	l.logger.Info(
		"authorized caller removed",
		"component", "membership",
		"caller", oldCaller,
	)
	return nil
}

// RegisterMember performs one-time registration and seeds the initial
// reputation score
func (l *Ledger) RegisterMember(member string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.profiles[member]; ok {
		return ErrAlreadyRegistered
	}
	l.profiles[member] = &Profile{
		Member:       member,
		RegisteredAt: time.Now(),
		Reputation:   InitialReputation,
	}
	if l.metrics.membersRegistered != nil {
		l.metrics.membersRegistered.Inc()
	}
	l.logger.Info(
		"member registered",
		"component", "membership",
		"member", member,
	)
	if l.eventBus != nil {
		l.eventBus.Publish(
			MemberRegisteredEventType,
			event.NewEvent(
				MemberRegisteredEventType,
				MemberRegisteredEvent{
					Member:     member,
					Reputation: InitialReputation,
				},
			),
		)
	}
	return nil
}

func (l *Ledger) IsRegistered(member string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.profiles[member]
	return ok
}

// RecordPotCreated appends a pot to the member's created list
func (l *Ledger) RecordPotCreated(caller string, member string, potID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	profile, err := l.authorizedProfile(caller, member)
	if err != nil {
		return err
	}
	profile.CreatedPots = append(profile.CreatedPots, potID)
	return nil
}

// RecordPotJoined appends a pot to the member's joined list
func (l *Ledger) RecordPotJoined(caller string, member string, potID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	profile, err := l.authorizedProfile(caller, member)
	if err != nil {
		return err
	}
	profile.JoinedPots = append(profile.JoinedPots, potID)
	return nil
}

// UpdateParticipation records a cycle payment and applies the participation
// reputation delta
func (l *Ledger) UpdateParticipation(
	caller string,
	member string,
	potID uint64,
	cycleID uint64,
	amount int64,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	profile, err := l.authorizedProfile(caller, member)
	if err != nil {
		return err
	}
	profile.CyclesParticipated++
	profile.TotalContributed += amount
	rec := l.cycleRecord(member, potID, cycleID)
	rec.Paid = true
	rec.Amount = amount
	l.applyReputation(profile, ReputationParticipation, "participation")
	return nil
}

// UpdateBidInfo records a bid fact and applies the bid reputation delta
func (l *Ledger) UpdateBidInfo(
	caller string,
	member string,
	potID uint64,
	cycleID uint64,
	bidAmount int64,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	profile, err := l.authorizedProfile(caller, member)
	if err != nil {
		return err
	}
	rec := l.cycleRecord(member, potID, cycleID)
	rec.HasBid = true
	rec.BidAmount = bidAmount
	l.applyReputation(profile, ReputationBid, "bid")
	return nil
}

// MarkAsWinner records the cycle winner and applies the win reputation delta.
// A cycle's winner may only be marked once.
func (l *Ledger) MarkAsWinner(
	caller string,
	member string,
	potID uint64,
	cycleID uint64,
	amount int64,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	profile, err := l.authorizedProfile(caller, member)
	if err != nil {
		return err
	}
	key := cycleKey{potID: potID, cycleID: cycleID}
	if _, ok := l.winners[key]; ok {
		return ErrAlreadyMarkedWinner
	}
	l.winners[key] = member
	profile.CyclesWon++
	rec := l.cycleRecord(member, potID, cycleID)
	rec.Won = true
	rec.Amount = amount
	l.applyReputation(profile, ReputationWin, "win")
	return nil
}

// GetProfile returns a copy of the member's profile
func (l *Ledger) GetProfile(member string) (Profile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	profile, ok := l.profiles[member]
	if !ok {
		return Profile{}, ErrNotRegistered
	}
	return *profile, nil
}

// WinRate returns the fraction of participated cycles the member has won
func (l *Ledger) WinRate(member string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	profile, ok := l.profiles[member]
	if !ok {
		return 0, ErrNotRegistered
	}
	if profile.CyclesParticipated == 0 {
		return 0, nil
	}
	return float64(profile.CyclesWon) / float64(profile.CyclesParticipated), nil
}

// TopMembers returns up to n profiles ranked by reputation score
func (l *Ledger) TopMembers(n int) []Profile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make([]Profile, 0, len(l.profiles))
	for _, profile := range l.profiles {
		ret = append(ret, *profile)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Reputation != ret[j].Reputation {
			return ret[i].Reputation > ret[j].Reputation
		}
		return ret[i].Member < ret[j].Member
	})
	if n >= 0 && n < len(ret) {
		ret = ret[:n]
	}
	return ret
}

// CycleHistory returns the member's per-cycle records within a pot
func (l *Ledger) CycleHistory(member string, potID uint64) []CycleRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	memberHistory, ok := l.history[member]
	if !ok {
		return nil
	}
	records := memberHistory[potID]
	ret := make([]CycleRecord, len(records))
	for i := range records {
		ret[i] = *records[i]
	}
	return ret
}

// authorizedProfile checks the allowlist and returns the target profile.
// Callers must hold the write lock.
func (l *Ledger) authorizedProfile(
	caller string,
	member string,
) (*Profile, error) {
	if !l.authorized[caller] {
		return nil, ErrNotAuthorized
	}
	profile, ok := l.profiles[member]
	if !ok {
		return nil, ErrNotRegistered
	}
	return profile, nil
}

// cycleRecord finds or creates the member's record for a cycle. Callers must
// hold the write lock.
func (l *Ledger) cycleRecord(
	member string,
	potID uint64,
	cycleID uint64,
) *CycleRecord {
	memberHistory, ok := l.history[member]
	if !ok {
		memberHistory = make(map[uint64][]*CycleRecord)
		l.history[member] = memberHistory
	}
	for _, rec := range memberHistory[potID] {
		if rec.CycleID == cycleID {
			return rec
		}
	}
	rec := &CycleRecord{PotID: potID, CycleID: cycleID}
	memberHistory[potID] = append(memberHistory[potID], rec)
	return rec
}

// applyReputation bumps the profile's score and publishes the update.
// Callers must hold the write lock.
func (l *Ledger) applyReputation(
	profile *Profile,
	delta int64,
	reason string,
) {
	profile.Reputation += delta
	if l.metrics.reputationUpdates != nil {
		l.metrics.reputationUpdates.Inc()
	}
	l.logger.Debug(
		"reputation updated",
		"component", "membership",
		"member", profile.Member,
		"delta", delta,
		"reason", reason,
	)
	if l.eventBus != nil {
		l.eventBus.Publish(
			ReputationUpdatedEventType,
			event.NewEvent(
				ReputationUpdatedEventType,
				ReputationUpdatedEvent{
					Member:   profile.Member,
					Delta:    delta,
					Reason:   reason,
					NewScore: profile.Reputation,
				},
			),
		)
	}
}
