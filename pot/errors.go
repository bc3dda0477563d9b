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
	"errors"
	"fmt"
)

// Validation
var (
	ErrEmptyName            = errors.New("pot name is empty")
	ErrInvalidAmount        = errors.New("contribution amount must be positive")
	ErrInvalidCycleDuration = errors.New("cycle duration out of bounds")
	ErrInvalidCycleCount    = errors.New("cycle count must be positive")
	ErrInvalidMemberLimits  = errors.New("member limits out of bounds")
	ErrInvalidBidDeadline   = errors.New("bid deadline out of bounds")
)

// Membership and pot lifecycle
var (
	ErrPotNotFound             = errors.New("pot not found")
	ErrPotFull                 = errors.New("pot is full")
	ErrAlreadyJoined           = errors.New("already joined pot")
	ErrCannotJoinAfterStarted  = errors.New("cannot join after pot started")
	ErrCannotLeaveAfterStarted = errors.New("cannot leave after pot started")
	ErrCreatorCannotLeave      = errors.New("creator cannot leave pot")
	ErrNotAMember              = errors.New("not a member of pot")
	ErrNotCreator              = errors.New("caller is not the pot creator")
	ErrNotEnoughMembers        = errors.New("not enough members to start")
	ErrAllCyclesCompleted      = errors.New("all cycles completed")
	ErrCycleInProgress         = errors.New("a cycle is already in progress")
)

// Cycle state machine
var (
	ErrCycleNotFound        = errors.New("cycle not found")
	ErrCycleNotActive       = errors.New("cycle is not active")
	ErrAlreadyPaidForCycle  = errors.New("already paid for cycle")
	ErrBidAlreadyPlaced     = errors.New("bid already placed for cycle")
	ErrBidDeadlinePassed    = errors.New("bid deadline has passed")
	ErrTooEarlyToClose      = errors.New("bid deadline has not elapsed")
	ErrBiddingAlreadyClosed = errors.New("bidding already closed")
	ErrBiddingNotClosed     = errors.New("bidding not closed")
	ErrWinnerAlreadySet     = errors.New("winner already set")
	ErrWinnerNotDeclared    = errors.New("winner not declared")
	ErrCycleNotEnded        = errors.New("cycle end time not reached")
	ErrAlreadyCompleted     = errors.New("cycle already completed")
	ErrInvalidCycleStatus   = errors.New("invalid cycle status")
	ErrNoParticipants       = errors.New("no participants paid for cycle")
)

// Randomness
var (
	ErrNotOracle          = errors.New("caller is not the randomness oracle")
	ErrVRFRequestNotFound = errors.New("randomness request not found")
	ErrVRFNotFulfilled    = errors.New("randomness request not fulfilled")
)

// Administration
var (
	ErrNotOwner      = errors.New("caller is not the owner")
	ErrEnginePaused  = errors.New("engine is paused")
	ErrAlreadyPaused = errors.New("already paused")
	ErrNotPaused     = errors.New("not paused")
	ErrPotPaused     = errors.New("pot is paused")
	ErrPotNotPaused  = errors.New("pot is not paused")
)

// InvalidBidAmountError is returned when a bid is not a valid discounted
// value of the full contribution pool
type InvalidBidAmountError struct {
	Amount int64
	Max    int64
}

func (e *InvalidBidAmountError) Error() string {
	return fmt.Sprintf(
		"invalid bid amount: %d (must be in 1..%d)",
		e.Amount,
		e.Max,
	)
}
