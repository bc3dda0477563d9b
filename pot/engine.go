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
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rondolabs/rondo/escrow"
	"github.com/rondolabs/rondo/event"
	"github.com/rondolabs/rondo/membership"
	"github.com/rondolabs/rondo/oracle"
)

// DefaultAddr is the principal the engine presents on the escrow and
// membership allowlists
const DefaultAddr = "engine"

type EngineConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Escrow       *escrow.Escrow
	Members      *membership.Ledger
	Oracle       *oracle.Oracle
	Owner        string
	// Addr is the engine's principal; defaults to DefaultAddr
	Addr string
}

// Engine owns pot, cycle, and bid state and drives the cycle state machine.
// It is the only component end users interact with; it fans out writes to the
// membership ledger and the escrow, and exchanges randomness requests and
// callbacks with the oracle.
//
// Every state-mutating operation runs under a single non-reentrant lock, so
// each operation commits as one atomic unit and re-entrant calls during a
// pending external call are serialized rather than interleaved.
type Engine struct {
	config   EngineConfig
	logger   *slog.Logger
	eventBus *event.EventBus
	escrow   *escrow.Escrow
	members  *membership.Ledger
	oracle   *oracle.Oracle
	owner    string
	addr     string
	paused   bool
	pots     map[uint64]*Pot
	cycles   map[uint64]*Cycle
	// requestCycles maps outstanding randomness request ids to cycles; the
	// oracle owns the requests themselves
	requestCycles map[string]uint64
	nextPotID     uint64
	nextCycleID   uint64
	now           func() time.Time
	metrics       struct {
		potsCreated         prometheus.Counter
		cyclesStarted       prometheus.Counter
		cyclesCompleted     prometheus.Counter
		interestDistributed prometheus.Counter
	}
	mu sync.Mutex
}

func NewEngine(config EngineConfig) *Engine {
	e := &Engine{
		config:        config,
		eventBus:      config.EventBus,
		escrow:        config.Escrow,
		members:       config.Members,
		oracle:        config.Oracle,
		owner:         config.Owner,
		addr:          config.Addr,
		pots:          make(map[uint64]*Pot),
		cycles:        make(map[uint64]*Cycle),
		requestCycles: make(map[string]uint64),
		now:           time.Now,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		e.logger = config.Logger
	}
	if e.addr == "" {
		e.addr = DefaultAddr
	}
	if config.PromRegistry != nil {
		promautoFactory := promauto.With(config.PromRegistry)
		e.metrics.potsCreated = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_pots_created_total",
				Help: "total pots created",
			},
		)
		e.metrics.cyclesStarted = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_cycles_started_total",
				Help: "total cycles started",
			},
		)
		e.metrics.cyclesCompleted = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_cycles_completed_total",
				Help: "total cycles completed",
			},
		)
		e.metrics.interestDistributed = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_interest_distributed_units_total",
				Help: "total interest units distributed to members",
			},
		)
	}
	return e
}

// Addr returns the engine's principal
func (e *Engine) Addr() string {
	return e.addr
}

// CreatePot creates a new pot in Recruiting status with the creator
// auto-joined
func (e *Engine) CreatePot(
	caller string,
	name string,
	amountPerCycle int64,
	cycleDuration time.Duration,
	frequency string,
	cycleCount int,
	bidDeadline time.Duration,
	minMembers int,
	maxMembers int,
) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return 0, ErrEnginePaused
	}
	if strings.TrimSpace(name) == "" {
		return 0, ErrEmptyName
	}
	if amountPerCycle <= 0 {
		return 0, ErrInvalidAmount
	}
	if cycleDuration < MinCycleDuration || cycleDuration > MaxCycleDuration {
		return 0, ErrInvalidCycleDuration
	}
	if cycleCount <= 0 {
		return 0, ErrInvalidCycleCount
	}
	if bidDeadline < MinBidDeadline || bidDeadline >= cycleDuration {
		return 0, ErrInvalidBidDeadline
	}
	if minMembers < 1 || minMembers > maxMembers || maxMembers > MaxMembers {
		return 0, ErrInvalidMemberLimits
	}
	e.nextPotID++
	pot := &Pot{
		ID:             e.nextPotID,
		Name:           name,
		Creator:        caller,
		AmountPerCycle: amountPerCycle,
		CycleDuration:  cycleDuration,
		BidDeadline:    bidDeadline,
		Frequency:      frequency,
		CycleCount:     cycleCount,
		MinMembers:     minMembers,
		MaxMembers:     maxMembers,
		Status:         PotRecruiting,
		Members:        []string{caller},
		CreatedAt:      e.now(),
	}
	e.pots[pot.ID] = pot
	e.ensureRegistered(caller)
	if err := e.members.RecordPotCreated(e.addr, caller, pot.ID); err != nil {
		e.logger.Error(
			"recording pot creation",
			"component", "engine",
			"error", err,
		)
	}
	if err := e.members.RecordPotJoined(e.addr, caller, pot.ID); err != nil {
		e.logger.Error(
			"recording pot join",
			"component", "engine",
			"error", err,
		)
	}
	if e.metrics.potsCreated != nil {
		e.metrics.potsCreated.Inc()
	}
	e.logger.Info(
		"pot created",
		"component", "engine",
		"pot", pot.ID,
		"creator", caller,
		"amount", amountPerCycle,
		"cycles", cycleCount,
	)
	e.publish(PotCreatedEventType, PotCreatedEvent{
		PotID:          pot.ID,
		Creator:        caller,
		Name:           name,
		AmountPerCycle: amountPerCycle,
		CycleCount:     cycleCount,
	})
	return pot.ID, nil
}

// JoinPot adds the caller to a recruiting pot
func (e *Engine) JoinPot(caller string, potID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	pot, err := e.mutablePot(potID)
	if err != nil {
		return err
	}
	if pot.Status != PotRecruiting {
		return ErrCannotJoinAfterStarted
	}
	if pot.isMember(caller) {
		return ErrAlreadyJoined
	}
	if len(pot.Members) >= pot.MaxMembers {
		return ErrPotFull
	}
	pot.Members = append(pot.Members, caller)
	e.ensureRegistered(caller)
	if err := e.members.RecordPotJoined(e.addr, caller, pot.ID); err != nil {
		e.logger.Error(
			"recording pot join",
			"component", "engine",
			"error", err,
		)
	}
	e.publish(PotJoinedEventType, PotJoinedEvent{
		PotID:       pot.ID,
		Member:      caller,
		MemberCount: len(pot.Members),
	})
	return nil
}

// LeavePot removes the caller from a pot that has not started
func (e *Engine) LeavePot(caller string, potID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	pot, err := e.mutablePot(potID)
	if err != nil {
		return err
	}
	if pot.Status != PotRecruiting {
		return ErrCannotLeaveAfterStarted
	}
	if caller == pot.Creator {
		return ErrCreatorCannotLeave
	}
	idx := slices.Index(pot.Members, caller)
	if idx < 0 {
		return ErrNotAMember
	}
	pot.Members = slices.Delete(pot.Members, idx, idx+1)
	e.publish(PotLeftEventType, PotLeftEvent{
		PotID:       pot.ID,
		Member:      caller,
		MemberCount: len(pot.Members),
	})
	return nil
}

// StartCycle opens the pot's next payout round. Creator-only.
func (e *Engine) StartCycle(caller string, potID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pot, err := e.mutablePot(potID)
	if err != nil {
		return 0, err
	}
	if caller != pot.Creator {
		return 0, ErrNotCreator
	}
	if pot.Status == PotCompleted ||
		pot.CompletedCycles >= pot.CycleCount {
		return 0, ErrAllCyclesCompleted
	}
	if len(pot.Members) < pot.MinMembers {
		return 0, ErrNotEnoughMembers
	}
	if pot.CurrentCycle != 0 {
		return 0, ErrCycleInProgress
	}
	now := e.now()
	e.nextCycleID++
	cycle := &Cycle{
		ID:          e.nextCycleID,
		PotID:       pot.ID,
		Index:       pot.CompletedCycles + 1,
		StartTime:   now,
		EndTime:     now.Add(pot.CycleDuration),
		BidDeadline: now.Add(pot.BidDeadline),
		Status:      CycleActive,
		paid:        make(map[string]bool),
		bids:        make(map[string]*Bid),
	}
	e.cycles[cycle.ID] = cycle
	pot.CurrentCycle = cycle.ID
	pot.Status = PotActive
	if e.metrics.cyclesStarted != nil {
		e.metrics.cyclesStarted.Inc()
	}
	e.logger.Info(
		"cycle started",
		"component", "engine",
		"pot", pot.ID,
		"cycle", cycle.ID,
		"index", cycle.Index,
	)
	e.publish(CycleStartedEventType, CycleStartedEvent{
		PotID:       pot.ID,
		CycleID:     cycle.ID,
		Index:       cycle.Index,
		StartTime:   cycle.StartTime.Unix(),
		EndTime:     cycle.EndTime.Unix(),
		BidDeadline: cycle.BidDeadline.Unix(),
	})
	return cycle.ID, nil
}

// PayForCycle collects the caller's fixed contribution for a cycle. Each
// member pays exactly once per cycle; funds are forwarded to the escrow and
// participation is recorded in the membership ledger.
func (e *Engine) PayForCycle(caller string, cycleID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, pot, err := e.mutableCycle(cycleID)
	if err != nil {
		return err
	}
	if cycle.Status != CycleActive {
		return ErrCycleNotActive
	}
	if !pot.isMember(caller) {
		return ErrNotAMember
	}
	if cycle.paid[caller] {
		return ErrAlreadyPaidForCycle
	}
	// The deposit is the commit point; an escrow or adapter failure aborts
	// with no engine state touched
	err = e.escrow.Deposit(e.addr, pot.ID, cycle.ID, caller, pot.AmountPerCycle)
	if err != nil {
		return err
	}
	cycle.paid[caller] = true
	cycle.Participants = append(cycle.Participants, caller)
	cycle.TotalCollected += pot.AmountPerCycle
	err = e.members.UpdateParticipation(
		e.addr,
		caller,
		pot.ID,
		cycle.ID,
		pot.AmountPerCycle,
	)
	if err != nil {
		e.logger.Error(
			"recording participation",
			"component", "engine",
			"error", err,
		)
	}
	e.publish(MemberPaidEventType, MemberPaidEvent{
		PotID:   pot.ID,
		CycleID: cycle.ID,
		Member:  caller,
		Amount:  pot.AmountPerCycle,
	})
	return nil
}

// PlaceBid records the caller's offer to accept a discounted payout. Allowed
// only while the cycle is active and before the bid deadline.
func (e *Engine) PlaceBid(caller string, cycleID uint64, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, pot, err := e.mutableCycle(cycleID)
	if err != nil {
		return err
	}
	switch cycle.Status {
	case CycleActive:
	case CycleBiddingClosed:
		return ErrBiddingAlreadyClosed
	default:
		return ErrCycleNotActive
	}
	if !e.now().Before(cycle.BidDeadline) {
		return ErrBidDeadlinePassed
	}
	if !pot.isMember(caller) {
		return ErrNotAMember
	}
	maxBid := pot.totalContribution()
	if amount <= 0 || amount > maxBid {
		return &InvalidBidAmountError{Amount: amount, Max: maxBid}
	}
	if _, ok := cycle.bids[caller]; ok {
		return ErrBidAlreadyPlaced
	}
	cycle.nextSeq++
	cycle.bids[caller] = &Bid{
		CycleID:  cycle.ID,
		Bidder:   caller,
		Amount:   amount,
		PlacedAt: e.now(),
		seq:      cycle.nextSeq,
	}
	err = e.members.UpdateBidInfo(e.addr, caller, pot.ID, cycle.ID, amount)
	if err != nil {
		e.logger.Error(
			"recording bid",
			"component", "engine",
			"error", err,
		)
	}
	e.publish(BidPlacedEventType, BidPlacedEvent{
		PotID:   pot.ID,
		CycleID: cycle.ID,
		Bidder:  caller,
		Amount:  amount,
	})
	return nil
}

// CloseBidding transitions an active cycle to BiddingClosed once the bid
// deadline has elapsed. Callable by anyone.
func (e *Engine) CloseBidding(caller string, cycleID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, pot, err := e.mutableCycle(cycleID)
	if err != nil {
		return err
	}
	switch cycle.Status {
	case CycleActive:
	case CycleBiddingClosed:
		return ErrBiddingAlreadyClosed
	default:
		return ErrInvalidCycleStatus
	}
	if e.now().Before(cycle.BidDeadline) {
		return ErrTooEarlyToClose
	}
	cycle.Status = CycleBiddingClosed
	e.logger.Info(
		"bidding closed",
		"component", "engine",
		"pot", pot.ID,
		"cycle", cycle.ID,
		"bidders", cycle.bidderCount(),
	)
	e.publish(BiddingClosedEventType, BiddingClosedEvent{
		PotID:       pot.ID,
		CycleID:     cycle.ID,
		BidderCount: cycle.bidderCount(),
	})
	return nil
}

// DeclareWinner resolves the cycle's winner. With bids present, the lowest
// bid wins (ties to the earliest submission) and losers are refunded. With no
// bids, a randomness request is issued over the paid-participant snapshot and
// the cycle awaits resolution; the returned winner is empty in that case.
func (e *Engine) DeclareWinner(
	caller string,
	cycleID uint64,
) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, pot, err := e.mutableCycle(cycleID)
	if err != nil {
		return "", err
	}
	if cycle.Status != CycleBiddingClosed {
		return "", ErrBiddingNotClosed
	}
	if cycle.Winner != "" {
		return "", ErrWinnerAlreadySet
	}
	if len(cycle.Participants) == 0 {
		return "", ErrNoParticipants
	}
	if winning := cycle.lowestBid(); winning != nil {
		// Bids are capped by the full-membership contribution, but settlement
		// can only release what was actually collected
		payout := winning.Amount
		if payout > cycle.TotalCollected {
			payout = cycle.TotalCollected
		}
		cycle.Winner = winning.Bidder
		cycle.WinningAmount = payout
		for _, losing := range cycle.losingBids(winning.Bidder) {
			e.publish(BidRefundedEventType, BidRefundedEvent{
				PotID:   pot.ID,
				CycleID: cycle.ID,
				Bidder:  losing.Bidder,
				Amount:  losing.Amount,
			})
		}
		e.logger.Info(
			"winner declared by auction",
			"component", "engine",
			"pot", pot.ID,
			"cycle", cycle.ID,
			"winner", winning.Bidder,
			"amount", cycle.WinningAmount,
		)
		e.publish(WinnerDeclaredEventType, WinnerDeclaredEvent{
			PotID:   pot.ID,
			CycleID: cycle.ID,
			Winner:  winning.Bidder,
			Method:  "auction",
			Amount:  cycle.WinningAmount,
		})
		return winning.Bidder, nil
	}
	// No bids: fall back to verifiable randomness over the participants
	// who paid, in payment order
	requestID, err := e.oracle.RequestRandomWinner(cycle.Participants)
	if err != nil {
		return "", err
	}
	cycle.vrfRequestID = requestID
	cycle.Status = CycleAwaitingVRF
	e.requestCycles[requestID] = cycle.ID
	e.logger.Info(
		"randomness requested for winner",
		"component", "engine",
		"pot", pot.ID,
		"cycle", cycle.ID,
		"request_id", requestID,
	)
	e.publish(RandomnessRequestedEventType, RandomnessRequestedEvent{
		PotID:      pot.ID,
		CycleID:    cycle.ID,
		RequestID:  requestID,
		Candidates: len(cycle.Participants),
	})
	return "", nil
}

// FulfillRandomWinner is the oracle's callback entry point. It sets the
// winner selected from the candidate snapshot and transitions the cycle back
// to BiddingClosed. Only the oracle may call it, and a cycle resolves at most
// once.
func (e *Engine) FulfillRandomWinner(
	caller string,
	requestID string,
	selected string,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.oracle.Addr() {
		return ErrNotOracle
	}
	cycleID, ok := e.requestCycles[requestID]
	if !ok {
		return ErrVRFRequestNotFound
	}
	// The pause gates apply to the callback path too; the oracle keeps the
	// resolved word, so the poll path can recover after a resume
	if _, _, err := e.mutableCycle(cycleID); err != nil {
		return err
	}
	return e.applyRandomWinner(cycleID, selected)
}

// CheckAndSetVRFWinner is the manual recovery path for a lost randomness
// callback. Callable by anyone; it pulls the already-resolved value from the
// oracle rather than re-requesting, and is idempotent with the callback path.
func (e *Engine) CheckAndSetVRFWinner(caller string, cycleID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, _, err := e.mutableCycle(cycleID)
	if err != nil {
		return err
	}
	if cycle.Status != CycleAwaitingVRF {
		return ErrInvalidCycleStatus
	}
	if cycle.vrfRequestID == "" {
		return ErrVRFRequestNotFound
	}
	selected, err := e.oracle.PreviewRandomWinner(cycle.vrfRequestID)
	if err != nil {
		if errors.Is(err, oracle.ErrNotFulfilled) {
			return ErrVRFNotFulfilled
		}
		return err
	}
	return e.applyRandomWinner(cycle.ID, selected)
}

// applyRandomWinner converges the callback and manual-check paths onto the
// same transition. Callers must hold the lock.
func (e *Engine) applyRandomWinner(cycleID uint64, selected string) error {
	cycle, ok := e.cycles[cycleID]
	if !ok {
		return ErrCycleNotFound
	}
	if cycle.Winner != "" {
		return ErrWinnerAlreadySet
	}
	if cycle.Status != CycleAwaitingVRF {
		return ErrInvalidCycleStatus
	}
	cycle.Winner = selected
	cycle.WinningAmount = cycle.TotalCollected
	cycle.Status = CycleBiddingClosed
	e.logger.Info(
		"winner declared by randomness",
		"component", "engine",
		"pot", cycle.PotID,
		"cycle", cycle.ID,
		"winner", selected,
	)
	e.publish(WinnerDeclaredEventType, WinnerDeclaredEvent{
		PotID:   cycle.PotID,
		CycleID: cycle.ID,
		Winner:  selected,
		Method:  "random",
		Amount:  cycle.WinningAmount,
	})
	return nil
}

// CompleteCycle settles a resolved cycle: the winner's payout is released
// from escrow, yield interest plus the winning-bid spread is distributed
// across non-winning participants, the ledger is updated, and the pot
// advances. All effects are staged before any commit; an external failure
// aborts the settlement and a retry resumes without losing harvested
// interest.
func (e *Engine) CompleteCycle(caller string, cycleID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, pot, err := e.mutableCycle(cycleID)
	if err != nil {
		return err
	}
	if cycle.Status == CycleCompleted {
		return ErrAlreadyCompleted
	}
	if cycle.Winner == "" {
		return ErrWinnerNotDeclared
	}
	if cycle.Status != CycleBiddingClosed {
		return ErrInvalidCycleStatus
	}
	if e.now().Before(cycle.EndTime) {
		return ErrCycleNotEnded
	}
	payout := cycle.WinningAmount
	spread := cycle.TotalCollected - payout
	if spread < 0 {
		spread = 0
	}
	nonWinners := cycle.nonWinners()
	// Harvest before release; harvested-but-undistributed interest survives
	// a failed attempt via pendingInterest
	harvested, err := e.escrow.WithdrawPotInterest(e.addr, pot.ID, cycle.ID)
	if err != nil {
		return err
	}
	cycle.pendingInterest += harvested
	// The winning discount stays parked in the yield adapter after the
	// winner payout; pull it back so every credited interest unit is backed
	// by withdrawn funds
	if spread > 0 && !cycle.spreadCollected {
		collected, err := e.escrow.CollectSpread(
			e.addr,
			pot.ID,
			cycle.ID,
			spread,
		)
		if err != nil {
			return err
		}
		cycle.pendingInterest += collected
		cycle.spreadCollected = true
	}
	actual, err := e.escrow.ReleaseFundsToWinner(
		e.addr,
		pot.ID,
		cycle.ID,
		cycle.Winner,
		payout,
	)
	if err != nil {
		return err
	}
	interestPool := cycle.pendingInterest
	shares := splitInterest(interestPool, len(nonWinners))
	for i, member := range nonWinners {
		if err := e.escrow.Distribute(
			e.addr,
			pot.ID,
			cycle.ID,
			member,
			shares[i],
		); err != nil {
			e.logger.Error(
				"distributing interest share",
				"component", "engine",
				"member", member,
				"error", err,
			)
		}
	}
	if len(nonWinners) == 0 && interestPool > 0 {
		// Single-participant cycle: the winner keeps the interest
		if err := e.escrow.Distribute(
			e.addr,
			pot.ID,
			cycle.ID,
			cycle.Winner,
			interestPool,
		); err != nil {
			e.logger.Error(
				"distributing interest to winner",
				"component", "engine",
				"error", err,
			)
		}
	}
	err = e.members.MarkAsWinner(e.addr, cycle.Winner, pot.ID, cycle.ID, actual)
	if err != nil {
		e.logger.Error(
			"marking winner",
			"component", "engine",
			"error", err,
		)
	}
	cycle.pendingInterest = 0
	cycle.Status = CycleCompleted
	pot.CompletedCycles++
	pot.CurrentCycle = 0
	potCompleted := pot.CompletedCycles >= pot.CycleCount
	if potCompleted {
		pot.Status = PotCompleted
	}
	if e.metrics.cyclesCompleted != nil {
		e.metrics.cyclesCompleted.Inc()
	}
	if e.metrics.interestDistributed != nil {
		e.metrics.interestDistributed.Add(float64(interestPool))
	}
	e.logger.Info(
		"cycle completed",
		"component", "engine",
		"pot", pot.ID,
		"cycle", cycle.ID,
		"winner", cycle.Winner,
		"payout", actual,
		"interest", interestPool,
	)
	e.publish(InterestDistributedEventType, InterestDistributedEvent{
		PotID:      pot.ID,
		CycleID:    cycle.ID,
		Total:      interestPool,
		Recipients: len(nonWinners),
	})
	e.publish(CycleCompletedEventType, CycleCompletedEvent{
		PotID:        pot.ID,
		CycleID:      cycle.ID,
		Winner:       cycle.Winner,
		Payout:       actual,
		Interest:     interestPool,
		PotCompleted: potCompleted,
	})
	return nil
}

// splitInterest divides total evenly across k recipients, handing the
// remainder out one unit at a time starting from the earliest
func splitInterest(total int64, k int) []int64 {
	if k <= 0 {
		return nil
	}
	shares := make([]int64, k)
	base := total / int64(k)
	remainder := total % int64(k)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}

// mutablePot looks up a pot and applies the global and per-pot pause gates.
// Callers must hold the lock.
func (e *Engine) mutablePot(potID uint64) (*Pot, error) {
	if e.paused {
		return nil, ErrEnginePaused
	}
	pot, ok := e.pots[potID]
	if !ok {
		return nil, ErrPotNotFound
	}
	if pot.Status == PotPaused {
		return nil, ErrPotPaused
	}
	return pot, nil
}

// mutableCycle looks up a cycle and its pot, applying the pause gates.
// Callers must hold the lock.
func (e *Engine) mutableCycle(cycleID uint64) (*Cycle, *Pot, error) {
	if e.paused {
		return nil, nil, ErrEnginePaused
	}
	cycle, ok := e.cycles[cycleID]
	if !ok {
		return nil, nil, ErrCycleNotFound
	}
	pot, ok := e.pots[cycle.PotID]
	if !ok {
		return nil, nil, ErrPotNotFound
	}
	if pot.Status == PotPaused {
		return nil, nil, ErrPotPaused
	}
	return cycle, pot, nil
}

// ensureRegistered registers a member on first contact. Callers must hold
// the lock.
func (e *Engine) ensureRegistered(member string) {
	if e.members.IsRegistered(member) {
		return
	}
	if err := e.members.RegisterMember(member); err != nil &&
		!errors.Is(err, membership.ErrAlreadyRegistered) {
		e.logger.Error(
			"registering member",
			"component", "engine",
			"member", member,
			"error", err,
		)
	}
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
