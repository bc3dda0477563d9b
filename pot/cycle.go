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

import (
	"sort"
	"time"
)

type CycleStatus int

const (
	CycleActive CycleStatus = iota
	CycleBiddingClosed
	CycleAwaitingVRF
	CycleCompleted
)

func (s CycleStatus) String() string {
	switch s {
	case CycleActive:
		return "active"
	case CycleBiddingClosed:
		return "bidding_closed"
	case CycleAwaitingVRF:
		return "awaiting_vrf"
	case CycleCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Bid is a member's offer to accept a discounted payout. Amount is the total
// the bidder is willing to receive; the lowest amount wins and the spread
// between the full pool and the winning amount feeds the shared interest
// pool.
type Bid struct {
	CycleID  uint64
	Bidder   string
	Amount   int64
	PlacedAt time.Time
	seq      int
}

// Cycle is one payout round of a pot. Status transitions are monotone:
// Active -> BiddingClosed -> {Completed | AwaitingVRF -> BiddingClosed ->
// Completed}; every transition checks its precondition status explicitly.
type Cycle struct {
	ID          uint64
	PotID       uint64
	Index       int
	StartTime   time.Time
	EndTime     time.Time
	BidDeadline time.Time
	Status      CycleStatus
	Winner      string
	// WinningAmount is the payout owed to the winner: the winning bid for an
	// auction outcome, or the full collected pool for a random one
	WinningAmount  int64
	TotalCollected int64
	// Participants in payment order; drives interest remainder ordering
	Participants []string

	paid    map[string]bool
	bids    map[string]*Bid
	nextSeq int
	// pendingInterest carries harvested-but-undistributed interest across a
	// failed completion attempt so a retry never loses it
	pendingInterest int64
	// spreadCollected marks the winning-bid discount as already pulled from
	// the yield adapter, so a retried completion does not pull it twice
	spreadCollected bool
	vrfRequestID    string
}

func (c *Cycle) bidderCount() int {
	return len(c.bids)
}

// lowestBid returns the winning bid: lowest amount, ties broken by earliest
// submission. Returns nil if no bids were placed.
func (c *Cycle) lowestBid() *Bid {
	var best *Bid
	for _, bid := range c.bids {
		if best == nil ||
			bid.Amount < best.Amount ||
			(bid.Amount == best.Amount && bid.seq < best.seq) {
			best = bid
		}
	}
	return best
}

// losingBids returns all bids except the winner's, ordered by submission
func (c *Cycle) losingBids(winner string) []*Bid {
	losers := make([]*Bid, 0, len(c.bids))
	for _, bid := range c.bids {
		if bid.Bidder == winner {
			continue
		}
		losers = append(losers, bid)
	}
	sort.Slice(losers, func(i, j int) bool {
		return losers[i].seq < losers[j].seq
	})
	return losers
}

// nonWinners returns the participants excluding the winner, in payment order
func (c *Cycle) nonWinners() []string {
	ret := make([]string, 0, len(c.Participants))
	for _, member := range c.Participants {
		if member == c.Winner {
			continue
		}
		ret = append(ret, member)
	}
	return ret
}
