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
	"testing"
	"time"

	"github.com/rondolabs/rondo/escrow"
	"github.com/rondolabs/rondo/membership"
	"github.com/rondolabs/rondo/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAmount      = int64(1_000_000)
	testDuration    = 30 * 24 * time.Hour
	testBidDeadline = 7 * 24 * time.Hour
)

type stubAdapter struct {
	supplied     map[string]int64
	interest     map[string]int64
	failSupply   bool
	failWithdraw bool
	failHarvest  bool
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{
		supplied: make(map[string]int64),
		interest: make(map[string]int64),
	}
}

func adapterKey(potID uint64, cycleID uint64) string {
	return fmt.Sprintf("%d/%d", potID, cycleID)
}

func (a *stubAdapter) Supply(potID uint64, cycleID uint64, amount int64) error {
	if a.failSupply {
		return errors.New("supply failed")
	}
	a.supplied[adapterKey(potID, cycleID)] += amount
	return nil
}

func (a *stubAdapter) Withdraw(
	potID uint64,
	cycleID uint64,
	amount int64,
) (int64, error) {
	if a.failWithdraw {
		return 0, errors.New("withdraw failed")
	}
	key := adapterKey(potID, cycleID)
	if amount > a.supplied[key] {
		amount = a.supplied[key]
	}
	a.supplied[key] -= amount
	return amount, nil
}

func (a *stubAdapter) AccruedInterest(
	potID uint64,
	cycleID uint64,
) (int64, error) {
	return a.interest[adapterKey(potID, cycleID)], nil
}

func (a *stubAdapter) HarvestInterest(
	potID uint64,
	cycleID uint64,
) (int64, error) {
	if a.failHarvest {
		return 0, errors.New("harvest failed")
	}
	key := adapterKey(potID, cycleID)
	ret := a.interest[key]
	a.interest[key] = 0
	return ret, nil
}

type captureSource struct {
	requests []string
	fail     bool
}

func (s *captureSource) RequestRandomWords(requestID string) error {
	if s.fail {
		return errors.New("source unavailable")
	}
	s.requests = append(s.requests, requestID)
	return nil
}

type engineHarness struct {
	engine  *Engine
	escrow  *escrow.Escrow
	members *membership.Ledger
	oracle  *oracle.Oracle
	adapter *stubAdapter
	source  *captureSource
	now     time.Time
}

func newEngineHarness(t *testing.T, wireFulfiller bool) *engineHarness {
	t.Helper()
	h := &engineHarness{
		adapter: newStubAdapter(),
		source:  &captureSource{},
		now:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	h.members = membership.NewLedger(membership.LedgerConfig{Owner: "owner"})
	require.NoError(t, h.members.AddAuthorizedCaller("owner", DefaultAddr))
	h.escrow = escrow.New(escrow.EscrowConfig{
		Adapter: h.adapter,
		Engine:  DefaultAddr,
	})
	h.oracle = oracle.New(oracle.OracleConfig{Source: h.source})
	h.engine = NewEngine(EngineConfig{
		Escrow:  h.escrow,
		Members: h.members,
		Oracle:  h.oracle,
		Owner:   "owner",
	})
	h.engine.now = func() time.Time { return h.now }
	if wireFulfiller {
		h.oracle.SetFulfiller(h.engine)
	}
	return h
}

func (h *engineHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *engineHarness) createPot(t *testing.T, cycleCount int) uint64 {
	t.Helper()
	potID, err := h.engine.CreatePot(
		"creator",
		"lunch club",
		testAmount,
		testDuration,
		"monthly",
		cycleCount,
		testBidDeadline,
		2,
		5,
	)
	require.NoError(t, err)
	return potID
}

// startPaidCycle joins the given members, starts a cycle, and pays everyone's
// contribution (creator first)
func (h *engineHarness) startPaidCycle(
	t *testing.T,
	potID uint64,
	members ...string,
) uint64 {
	t.Helper()
	for _, member := range members {
		require.NoError(t, h.engine.JoinPot(member, potID))
	}
	cycleID, err := h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	require.NoError(t, h.engine.PayForCycle("creator", cycleID))
	for _, member := range members {
		require.NoError(t, h.engine.PayForCycle(member, cycleID))
	}
	return cycleID
}

func TestCreatePotValidation(t *testing.T) {
	h := newEngineHarness(t, true)
	testDefs := []struct {
		name        string
		potName     string
		amount      int64
		duration    time.Duration
		cycleCount  int
		bidDeadline time.Duration
		minMembers  int
		maxMembers  int
		expectedErr error
	}{
		{
			name:        "empty name",
			potName:     "   ",
			amount:      testAmount,
			duration:    testDuration,
			cycleCount:  3,
			bidDeadline: testBidDeadline,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrEmptyName,
		},
		{
			name:        "zero amount",
			potName:     "pot",
			amount:      0,
			duration:    testDuration,
			cycleCount:  3,
			bidDeadline: testBidDeadline,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "duration too short",
			potName:     "pot",
			amount:      testAmount,
			duration:    time.Hour,
			cycleCount:  3,
			bidDeadline: testBidDeadline,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrInvalidCycleDuration,
		},
		{
			name:        "duration too long",
			potName:     "pot",
			amount:      testAmount,
			duration:    120 * 24 * time.Hour,
			cycleCount:  3,
			bidDeadline: testBidDeadline,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrInvalidCycleDuration,
		},
		{
			name:        "zero cycles",
			potName:     "pot",
			amount:      testAmount,
			duration:    testDuration,
			cycleCount:  0,
			bidDeadline: testBidDeadline,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrInvalidCycleCount,
		},
		{
			name:        "bid deadline below minimum",
			potName:     "pot",
			amount:      testAmount,
			duration:    testDuration,
			cycleCount:  3,
			bidDeadline: time.Minute,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrInvalidBidDeadline,
		},
		{
			name:        "bid deadline at cycle duration",
			potName:     "pot",
			amount:      testAmount,
			duration:    testDuration,
			cycleCount:  3,
			bidDeadline: testDuration,
			minMembers:  2,
			maxMembers:  5,
			expectedErr: ErrInvalidBidDeadline,
		},
		{
			name:        "min above max",
			potName:     "pot",
			amount:      testAmount,
			duration:    testDuration,
			cycleCount:  3,
			bidDeadline: testBidDeadline,
			minMembers:  6,
			maxMembers:  5,
			expectedErr: ErrInvalidMemberLimits,
		},
		{
			name:        "max above cap",
			potName:     "pot",
			amount:      testAmount,
			duration:    testDuration,
			cycleCount:  3,
			bidDeadline: testBidDeadline,
			minMembers:  2,
			maxMembers:  MaxMembers + 1,
			expectedErr: ErrInvalidMemberLimits,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := h.engine.CreatePot(
				"creator",
				testDef.potName,
				testDef.amount,
				testDef.duration,
				"monthly",
				testDef.cycleCount,
				testDef.bidDeadline,
				testDef.minMembers,
				testDef.maxMembers,
			)
			assert.ErrorIs(t, err, testDef.expectedErr)
		})
	}
}

func TestCreatePotRegistersCreator(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 3)
	assert.True(t, h.members.IsRegistered("creator"))
	pot, err := h.engine.GetPot(potID)
	require.NoError(t, err)
	assert.Equal(t, PotRecruiting, pot.Status)
	assert.Equal(t, []string{"creator"}, pot.Members)
	profile, err := h.members.GetProfile("creator")
	require.NoError(t, err)
	assert.Equal(t, []uint64{potID}, profile.CreatedPots)
	assert.Equal(t, []uint64{potID}, profile.JoinedPots)
}

func TestJoinLeaveRoundTrip(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 3)
	require.NoError(t, h.engine.JoinPot("alice", potID))
	assert.ErrorIs(t, h.engine.JoinPot("alice", potID), ErrAlreadyJoined)
	members, err := h.engine.Members(potID)
	require.NoError(t, err)
	assert.Equal(t, []string{"creator", "alice"}, members)

	// Leaving and re-joining restores the original roster state
	require.NoError(t, h.engine.LeavePot("alice", potID))
	members, err = h.engine.Members(potID)
	require.NoError(t, err)
	assert.Equal(t, []string{"creator"}, members)
	require.NoError(t, h.engine.JoinPot("alice", potID))

	assert.ErrorIs(
		t,
		h.engine.LeavePot("creator", potID),
		ErrCreatorCannotLeave,
	)
	assert.ErrorIs(t, h.engine.LeavePot("mallory", potID), ErrNotAMember)

	_, err = h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	assert.ErrorIs(
		t,
		h.engine.JoinPot("bob", potID),
		ErrCannotJoinAfterStarted,
	)
	assert.ErrorIs(
		t,
		h.engine.LeavePot("alice", potID),
		ErrCannotLeaveAfterStarted,
	)
}

func TestJoinPotFull(t *testing.T) {
	h := newEngineHarness(t, true)
	potID, err := h.engine.CreatePot(
		"creator",
		"tiny pot",
		testAmount,
		testDuration,
		"monthly",
		1,
		testBidDeadline,
		2,
		2,
	)
	require.NoError(t, err)
	require.NoError(t, h.engine.JoinPot("alice", potID))
	assert.ErrorIs(t, h.engine.JoinPot("bob", potID), ErrPotFull)
}

func TestStartCycleGates(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	_, err := h.engine.StartCycle("alice", potID)
	assert.ErrorIs(t, err, ErrNotCreator)
	_, err = h.engine.StartCycle("creator", potID)
	assert.ErrorIs(t, err, ErrNotEnoughMembers)
	require.NoError(t, h.engine.JoinPot("alice", potID))
	cycleID, err := h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	_, err = h.engine.StartCycle("creator", potID)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	pot, err := h.engine.GetPot(potID)
	require.NoError(t, err)
	assert.Equal(t, PotActive, pot.Status)
	assert.Equal(t, cycleID, pot.CurrentCycle)
}

func TestPayForCycle(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	assert.ErrorIs(
		t,
		h.engine.PayForCycle("alice", cycleID),
		ErrAlreadyPaidForCycle,
	)
	assert.ErrorIs(t, h.engine.PayForCycle("mallory", cycleID), ErrNotAMember)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, 3*testAmount, cycle.TotalCollected)
	assert.Equal(t, []string{"creator", "alice", "bob"}, cycle.Participants)
	assert.Equal(t, 3*testAmount, h.escrow.TotalDeposited())
	assert.Equal(
		t,
		3*testAmount,
		h.adapter.supplied[adapterKey(potID, cycleID)],
	)
}

func TestPayForCycleDepositFailure(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	require.NoError(t, h.engine.JoinPot("alice", potID))
	cycleID, err := h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	h.adapter.failSupply = true
	require.Error(t, h.engine.PayForCycle("alice", cycleID))
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Zero(t, cycle.TotalCollected)
	assert.Empty(t, cycle.Participants)
	// A failed deposit can be retried once the adapter recovers
	h.adapter.failSupply = false
	require.NoError(t, h.engine.PayForCycle("alice", cycleID))
}

func TestPlaceBidValidation(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	maxBid := 3 * testAmount

	assert.ErrorIs(
		t,
		h.engine.PlaceBid("mallory", cycleID, testAmount),
		ErrNotAMember,
	)
	var invalidBid *InvalidBidAmountError
	err := h.engine.PlaceBid("alice", cycleID, 0)
	require.ErrorAs(t, err, &invalidBid)
	err = h.engine.PlaceBid("alice", cycleID, maxBid+1)
	require.ErrorAs(t, err, &invalidBid)
	assert.Equal(t, maxBid+1, invalidBid.Amount)
	assert.Equal(t, maxBid, invalidBid.Max)

	require.NoError(t, h.engine.PlaceBid("alice", cycleID, maxBid))
	assert.ErrorIs(
		t,
		h.engine.PlaceBid("alice", cycleID, maxBid-1),
		ErrBidAlreadyPlaced,
	)

	h.advance(testBidDeadline)
	assert.ErrorIs(
		t,
		h.engine.PlaceBid("bob", cycleID, maxBid),
		ErrBidDeadlinePassed,
	)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	assert.ErrorIs(
		t,
		h.engine.PlaceBid("bob", cycleID, maxBid),
		ErrBiddingAlreadyClosed,
	)
}

func TestCloseBiddingGates(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	cycleID := h.startPaidCycle(t, potID, "alice")
	assert.ErrorIs(
		t,
		h.engine.CloseBidding("anyone", cycleID),
		ErrTooEarlyToClose,
	)
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	assert.ErrorIs(
		t,
		h.engine.CloseBidding("anyone", cycleID),
		ErrBiddingAlreadyClosed,
	)
}

func TestDeclareWinnerRequiresClosedBidding(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, 2*testAmount))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	assert.ErrorIs(t, err, ErrBiddingNotClosed)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, CycleActive, cycle.Status)
	assert.Empty(t, cycle.Winner)
}

func TestAuctionLowestBidWins(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, 2_900_000))
	require.NoError(t, h.engine.PlaceBid("bob", cycleID, 2_800_000))
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	winner, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	assert.Equal(t, "bob", winner)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_800_000), cycle.WinningAmount)

	_, err = h.engine.DeclareWinner("creator", cycleID)
	assert.ErrorIs(t, err, ErrWinnerAlreadySet)
}

func TestAuctionTieGoesToEarliestBid(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	require.NoError(t, h.engine.PlaceBid("bob", cycleID, 2_500_000))
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, 2_500_000))
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	winner, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	assert.Equal(t, "bob", winner)
}

func TestAuctionSpreadJoinsInterestPool(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	require.NoError(t, h.engine.PlaceBid("bob", cycleID, 2_800_000))
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	h.advance(testDuration - testBidDeadline)
	require.NoError(t, h.engine.CompleteCycle("creator", cycleID))

	// Spread of 200_000 splits evenly across the two non-winners
	assert.Equal(t, int64(2_800_000), h.escrow.BalanceOf("bob"))
	assert.Equal(t, int64(100_000), h.escrow.BalanceOf("creator"))
	assert.Equal(t, int64(100_000), h.escrow.BalanceOf("alice"))
	assert.Equal(t, int64(200_000), h.escrow.TotalInterestPaid())

	// Conservation: payout plus spread drains the adapter position and every
	// deposited unit is accounted as withdrawn
	assert.Zero(t, h.adapter.supplied[adapterKey(potID, cycleID)])
	funds, ok := h.escrow.CycleFunds(potID, cycleID)
	require.True(t, ok)
	assert.Equal(t, funds.Principal, funds.Withdrawn)
}

func TestAuctionWinningBidClampedToCollected(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	// bob joins but never pays, so collected funds trail the bid ceiling
	require.NoError(t, h.engine.JoinPot("alice", potID))
	require.NoError(t, h.engine.JoinPot("bob", potID))
	cycleID, err := h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	require.NoError(t, h.engine.PayForCycle("creator", cycleID))
	require.NoError(t, h.engine.PayForCycle("alice", cycleID))
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, 2_500_000))
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))

	winner, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	assert.Equal(t, "alice", winner)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), cycle.WinningAmount)

	// Settlement succeeds with the clamped payout instead of wedging on an
	// unreleasable bid
	h.advance(testDuration - testBidDeadline)
	require.NoError(t, h.engine.CompleteCycle("creator", cycleID))
	assert.Equal(t, int64(2_000_000), h.escrow.BalanceOf("alice"))
	assert.Zero(t, h.adapter.supplied[adapterKey(potID, cycleID)])
}

func TestDeclareWinnerRequiresPayments(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	require.NoError(t, h.engine.JoinPot("alice", potID))
	cycleID, err := h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, testAmount))
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err = h.engine.DeclareWinner("creator", cycleID)
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestRandomWinnerFallback(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	winner, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	assert.Empty(t, winner)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, CycleAwaitingVRF, cycle.Status)
	require.Len(t, h.source.requests, 1)

	// Word 1 over [creator alice bob] selects alice
	require.NoError(t, h.oracle.HandleRandomWords(h.source.requests[0], 1))
	cycle, err = h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, CycleBiddingClosed, cycle.Status)
	assert.Equal(t, "alice", cycle.Winner)
	assert.Equal(t, cycle.TotalCollected, cycle.WinningAmount)
}

func TestRandomWinnerDoubleDelivery(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	requestID := h.source.requests[0]
	require.NoError(t, h.oracle.HandleRandomWords(requestID, 1))

	// A replayed callback must not change the resolved winner
	assert.ErrorIs(
		t,
		h.oracle.HandleRandomWords(requestID, 2),
		oracle.ErrAlreadyFulfilled,
	)
	assert.ErrorIs(
		t,
		h.engine.FulfillRandomWinner(h.oracle.Addr(), requestID, "bob"),
		ErrWinnerAlreadySet,
	)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, "alice", cycle.Winner)
}

func TestFulfillRandomWinnerAuth(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice")
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	requestID := h.source.requests[0]
	assert.ErrorIs(
		t,
		h.engine.FulfillRandomWinner("mallory", requestID, "mallory"),
		ErrNotOracle,
	)
	assert.ErrorIs(
		t,
		h.engine.FulfillRandomWinner(h.oracle.Addr(), "bogus", "alice"),
		ErrVRFRequestNotFound,
	)
}

func TestFulfillRandomWinnerPausedEngine(t *testing.T) {
	h := newEngineHarness(t, false)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	requestID := h.source.requests[0]

	// The global pause halts the oracle callback like any other mutation
	require.NoError(t, h.engine.Pause("owner"))
	assert.ErrorIs(
		t,
		h.engine.FulfillRandomWinner(h.oracle.Addr(), requestID, "alice"),
		ErrEnginePaused,
	)
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, CycleAwaitingVRF, cycle.Status)
	assert.Empty(t, cycle.Winner)

	// A redelivery after the resume lands
	require.NoError(t, h.engine.Unpause("owner"))
	require.NoError(
		t,
		h.engine.FulfillRandomWinner(h.oracle.Addr(), requestID, "alice"),
	)
	cycle, err = h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, "alice", cycle.Winner)
}

func TestCheckAndSetVRFWinner(t *testing.T) {
	// No fulfiller wired, so the callback path cannot reach the engine and
	// resolution must go through the manual poll
	h := newEngineHarness(t, false)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	requestID := h.source.requests[0]

	assert.ErrorIs(
		t,
		h.engine.CheckAndSetVRFWinner("anyone", cycleID),
		ErrVRFNotFulfilled,
	)
	assert.ErrorIs(
		t,
		h.oracle.HandleRandomWords(requestID, 2),
		oracle.ErrNoFulfiller,
	)
	require.NoError(t, h.engine.CheckAndSetVRFWinner("anyone", cycleID))
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, "bob", cycle.Winner)
	assert.Equal(t, CycleBiddingClosed, cycle.Status)

	// The poll path is idempotent with itself
	assert.ErrorIs(
		t,
		h.engine.CheckAndSetVRFWinner("anyone", cycleID),
		ErrInvalidCycleStatus,
	)
}

func TestCompleteCycleGates(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	assert.ErrorIs(
		t,
		h.engine.CompleteCycle("creator", cycleID),
		ErrWinnerNotDeclared,
	)
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	require.NoError(t, h.oracle.HandleRandomWords(h.source.requests[0], 0))
	assert.ErrorIs(
		t,
		h.engine.CompleteCycle("creator", cycleID),
		ErrCycleNotEnded,
	)
	h.advance(testDuration - testBidDeadline)
	require.NoError(t, h.engine.CompleteCycle("creator", cycleID))
	assert.ErrorIs(
		t,
		h.engine.CompleteCycle("creator", cycleID),
		ErrAlreadyCompleted,
	)
}

func TestCompleteCycleDistributesInterest(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.adapter.interest[adapterKey(potID, cycleID)] = 100_000_000
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	require.NoError(t, h.oracle.HandleRandomWords(h.source.requests[0], 1))
	h.advance(testDuration - testBidDeadline)
	require.NoError(t, h.engine.CompleteCycle("creator", cycleID))

	// Random winner takes the full pool; interest splits across the rest
	assert.Equal(t, 3*testAmount, h.escrow.BalanceOf("alice"))
	assert.Equal(t, int64(50_000_000), h.escrow.BalanceOf("creator"))
	assert.Equal(t, int64(50_000_000), h.escrow.BalanceOf("bob"))

	profile, err := h.members.GetProfile("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.CyclesWon)
}

func TestCompleteCycleRemainderOrdering(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.adapter.interest[adapterKey(potID, cycleID)] = 100_000_001
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	require.NoError(t, h.oracle.HandleRandomWords(h.source.requests[0], 1))
	h.advance(testDuration - testBidDeadline)
	require.NoError(t, h.engine.CompleteCycle("creator", cycleID))

	// The odd unit lands on the earliest payer among the non-winners
	assert.Equal(t, int64(50_000_001), h.escrow.BalanceOf("creator"))
	assert.Equal(t, int64(50_000_000), h.escrow.BalanceOf("bob"))
}

func TestCompleteCycleRetryKeepsHarvestedInterest(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	h.adapter.interest[adapterKey(potID, cycleID)] = 100_000_000
	h.advance(testBidDeadline)
	require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
	_, err := h.engine.DeclareWinner("creator", cycleID)
	require.NoError(t, err)
	require.NoError(t, h.oracle.HandleRandomWords(h.source.requests[0], 1))
	h.advance(testDuration - testBidDeadline)

	// First attempt harvests interest, then fails on the principal release
	h.adapter.failWithdraw = true
	require.Error(t, h.engine.CompleteCycle("creator", cycleID))
	cycle, err := h.engine.GetCycle(cycleID)
	require.NoError(t, err)
	assert.NotEqual(t, CycleCompleted, cycle.Status)

	h.adapter.failWithdraw = false
	require.NoError(t, h.engine.CompleteCycle("creator", cycleID))
	assert.Equal(t, 3*testAmount, h.escrow.BalanceOf("alice"))
	assert.Equal(t, int64(50_000_000), h.escrow.BalanceOf("creator"))
	assert.Equal(t, int64(50_000_000), h.escrow.BalanceOf("bob"))
}

func TestPotAdvancesAndCompletes(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 2)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")

	runCycle := func(cycleID uint64, word uint64) {
		h.advance(testBidDeadline)
		require.NoError(t, h.engine.CloseBidding("anyone", cycleID))
		_, err := h.engine.DeclareWinner("creator", cycleID)
		require.NoError(t, err)
		last := h.source.requests[len(h.source.requests)-1]
		require.NoError(t, h.oracle.HandleRandomWords(last, word))
		h.advance(testDuration - testBidDeadline)
		require.NoError(t, h.engine.CompleteCycle("creator", cycleID))
	}
	runCycle(cycleID, 0)

	pot, err := h.engine.GetPot(potID)
	require.NoError(t, err)
	assert.Equal(t, PotActive, pot.Status)
	assert.Equal(t, 1, pot.CompletedCycles)
	assert.Zero(t, pot.CurrentCycle)

	cycleID2, err := h.engine.StartCycle("creator", potID)
	require.NoError(t, err)
	require.NoError(t, h.engine.PayForCycle("creator", cycleID2))
	require.NoError(t, h.engine.PayForCycle("alice", cycleID2))
	require.NoError(t, h.engine.PayForCycle("bob", cycleID2))
	runCycle(cycleID2, 1)

	pot, err = h.engine.GetPot(potID)
	require.NoError(t, err)
	assert.Equal(t, PotCompleted, pot.Status)
	_, err = h.engine.StartCycle("creator", potID)
	assert.ErrorIs(t, err, ErrAllCyclesCompleted)
}

func TestPauseBlocksMutations(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	assert.ErrorIs(t, h.engine.Pause("mallory"), ErrNotOwner)
	require.NoError(t, h.engine.Pause("owner"))
	assert.ErrorIs(t, h.engine.Pause("owner"), ErrAlreadyPaused)
	assert.True(t, h.engine.Paused())

	_, err := h.engine.CreatePot(
		"creator",
		"pot",
		testAmount,
		testDuration,
		"monthly",
		1,
		testBidDeadline,
		2,
		5,
	)
	assert.ErrorIs(t, err, ErrEnginePaused)
	assert.ErrorIs(t, h.engine.JoinPot("alice", potID), ErrEnginePaused)

	require.NoError(t, h.engine.Unpause("owner"))
	assert.ErrorIs(t, h.engine.Unpause("owner"), ErrNotPaused)
	require.NoError(t, h.engine.JoinPot("alice", potID))
}

func TestPausePot(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice")
	assert.ErrorIs(t, h.engine.PausePot("mallory", potID), ErrNotOwner)
	require.NoError(t, h.engine.PausePot("creator", potID))
	assert.ErrorIs(
		t,
		h.engine.PlaceBid("alice", cycleID, testAmount),
		ErrPotPaused,
	)
	assert.ErrorIs(t, h.engine.ResumePot("mallory", potID), ErrNotOwner)
	require.NoError(t, h.engine.ResumePot("owner", potID))
	assert.ErrorIs(t, h.engine.ResumePot("owner", potID), ErrPotNotPaused)

	// Prior status is restored, so the in-flight cycle keeps going
	pot, err := h.engine.GetPot(potID)
	require.NoError(t, err)
	assert.Equal(t, PotActive, pot.Status)
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, testAmount))
}

func TestEmergencyWithdraw(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	h.startPaidCycle(t, potID, "alice", "bob")
	_, err := h.engine.EmergencyWithdraw("owner", "rescue")
	assert.ErrorIs(t, err, ErrNotPaused)
	_, err = h.engine.EmergencyWithdraw("mallory", "rescue")
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, h.engine.Pause("owner"))
	amount, err := h.engine.EmergencyWithdraw("owner", "rescue")
	require.NoError(t, err)
	assert.Equal(t, 3*testAmount, amount)
	assert.Equal(t, 3*testAmount, h.escrow.BalanceOf("rescue"))
}

func TestOwnershipTransfer(t *testing.T) {
	h := newEngineHarness(t, true)
	assert.ErrorIs(
		t,
		h.engine.TransferOwnership("mallory", "mallory"),
		ErrNotOwner,
	)
	require.NoError(t, h.engine.TransferOwnership("owner", "new-owner"))
	assert.Equal(t, "new-owner", h.engine.Owner())
	assert.ErrorIs(t, h.engine.Pause("owner"), ErrNotOwner)
	require.NoError(t, h.engine.Pause("new-owner"))
	require.NoError(t, h.engine.Unpause("new-owner"))

	require.NoError(t, h.engine.RenounceOwnership("new-owner"))
	assert.Empty(t, h.engine.Owner())
	assert.ErrorIs(t, h.engine.Pause("new-owner"), ErrNotOwner)
}

func TestBidsViewOrdering(t *testing.T) {
	h := newEngineHarness(t, true)
	potID := h.createPot(t, 1)
	cycleID := h.startPaidCycle(t, potID, "alice", "bob")
	require.NoError(t, h.engine.PlaceBid("bob", cycleID, 2_700_000))
	require.NoError(t, h.engine.PlaceBid("creator", cycleID, 2_600_000))
	require.NoError(t, h.engine.PlaceBid("alice", cycleID, 2_900_000))
	bids, err := h.engine.Bids(cycleID)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	assert.Equal(t, "bob", bids[0].Bidder)
	assert.Equal(t, "creator", bids[1].Bidder)
	assert.Equal(t, "alice", bids[2].Bidder)
}

func TestSplitInterest(t *testing.T) {
	testDefs := []struct {
		total    int64
		k        int
		expected []int64
	}{
		{total: 100, k: 2, expected: []int64{50, 50}},
		{total: 101, k: 2, expected: []int64{51, 50}},
		{total: 7, k: 3, expected: []int64{3, 2, 2}},
		{total: 0, k: 3, expected: []int64{0, 0, 0}},
		{total: 5, k: 0, expected: nil},
	}
	for _, testDef := range testDefs {
		result := splitInterest(testDef.total, testDef.k)
		assert.Equal(t, testDef.expected, result)
	}
}
