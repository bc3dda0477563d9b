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

package pot

import "github.com/rondolabs/rondo/event"

// Every event carries the pot/cycle/member identifiers an external indexer
// needs to reconstruct state without re-querying the engine.
const (
	PotCreatedEventType           event.EventType = "pot.created"
	PotJoinedEventType            event.EventType = "pot.joined"
	PotLeftEventType              event.EventType = "pot.left"
	PotPausedEventType            event.EventType = "pot.paused"
	PotResumedEventType           event.EventType = "pot.resumed"
	CycleStartedEventType         event.EventType = "cycle.started"
	MemberPaidEventType           event.EventType = "cycle.member_paid"
	BidPlacedEventType            event.EventType = "cycle.bid_placed"
	BidRefundedEventType          event.EventType = "cycle.bid_refunded"
	BiddingClosedEventType        event.EventType = "cycle.bidding_closed"
	RandomnessRequestedEventType  event.EventType = "cycle.randomness_requested"
	WinnerDeclaredEventType       event.EventType = "cycle.winner_declared"
	InterestDistributedEventType  event.EventType = "cycle.interest_distributed"
	CycleCompletedEventType       event.EventType = "cycle.completed"
	EnginePausedEventType         event.EventType = "engine.paused"
	EngineUnpausedEventType       event.EventType = "engine.unpaused"
	OwnershipTransferredEventType event.EventType = "engine.ownership_transferred"
	EmergencyWithdrawalEventType  event.EventType = "engine.emergency_withdrawal"
)

type PotCreatedEvent struct {
	Creator        string
	Name           string
	PotID          uint64
	AmountPerCycle int64
	CycleCount     int
}

type PotJoinedEvent struct {
	Member      string
	PotID       uint64
	MemberCount int
}

type PotLeftEvent struct {
	Member      string
	PotID       uint64
	MemberCount int
}

type PotPausedEvent struct {
	PotID uint64
}

type PotResumedEvent struct {
	PotID uint64
}

type CycleStartedEvent struct {
	PotID       uint64
	CycleID     uint64
	Index       int
	StartTime   int64
	EndTime     int64
	BidDeadline int64
}

type MemberPaidEvent struct {
	Member  string
	PotID   uint64
	CycleID uint64
	Amount  int64
}

type BidPlacedEvent struct {
	Bidder  string
	PotID   uint64
	CycleID uint64
	Amount  int64
}

type BidRefundedEvent struct {
	Bidder  string
	PotID   uint64
	CycleID uint64
	Amount  int64
}

type BiddingClosedEvent struct {
	PotID       uint64
	CycleID     uint64
	BidderCount int
}

type RandomnessRequestedEvent struct {
	RequestID  string
	PotID      uint64
	CycleID    uint64
	Candidates int
}

type WinnerDeclaredEvent struct {
	Winner  string
	Method  string
	PotID   uint64
	CycleID uint64
	Amount  int64
}

type InterestDistributedEvent struct {
	PotID      uint64
	CycleID    uint64
	Total      int64
	Recipients int
}

type CycleCompletedEvent struct {
	Winner       string
	PotID        uint64
	CycleID      uint64
	Payout       int64
	Interest     int64
	PotCompleted bool
}

type EnginePausedEvent struct {
	By string
}

type EngineUnpausedEvent struct {
	By string
}

type OwnershipTransferredEvent struct {
	From string
	To   string
}

type EmergencyWithdrawalEvent struct {
	To     string
	Amount int64
}
