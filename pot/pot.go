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
	"slices"
	"time"
)

// Pot parameter bounds
const (
	MinCycleDuration = 24 * time.Hour
	MaxCycleDuration = 90 * 24 * time.Hour
	MinBidDeadline   = time.Hour
	MaxMembers       = 100
)

type PotStatus int

const (
	PotRecruiting PotStatus = iota
	PotActive
	PotPaused
	PotCompleted
)

func (s PotStatus) String() string {
	switch s {
	case PotRecruiting:
		return "recruiting"
	case PotActive:
		return "active"
	case PotPaused:
		return "paused"
	case PotCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Pot is a savings group with fixed per-cycle contributions and a bounded
// member roster
type Pot struct {
	ID              uint64
	Name            string
	Creator         string
	AmountPerCycle  int64
	CycleDuration   time.Duration
	BidDeadline     time.Duration
	Frequency       string
	CycleCount      int
	CompletedCycles int
	MinMembers      int
	MaxMembers      int
	Status          PotStatus
	// Members in join order; the creator is always first
	Members []string
	// CurrentCycle is the id of the in-progress cycle, or zero
	CurrentCycle uint64
	CreatedAt    time.Time

	statusBeforePause PotStatus
}

func (p *Pot) isMember(member string) bool {
	return slices.Contains(p.Members, member)
}

// totalContribution is the full pooled amount for one cycle if every member
// pays
func (p *Pot) totalContribution() int64 {
	return p.AmountPerCycle * int64(len(p.Members))
}
