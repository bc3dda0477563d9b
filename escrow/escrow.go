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

package escrow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rondolabs/rondo/event"
)

var (
	ErrNotEngine            = errors.New("caller is not the engine")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrNoFunds              = errors.New("no funds recorded for cycle")
	ErrFundsAlreadyReleased = errors.New("funds already released for cycle")
)

// InsufficientBalanceError is returned when a release would exceed the
// remaining principal for a cycle
type InsufficientBalanceError struct {
	PotID     uint64
	CycleID   uint64
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: pot=%d cycle=%d requested=%d available=%d",
		e.PotID,
		e.CycleID,
		e.Requested,
		e.Available,
	)
}

// CycleFunds is the custody record for a single (pot, cycle) pair
type CycleFunds struct {
	PotID          uint64
	CycleID        uint64
	Principal      int64
	Withdrawn      int64
	InterestEarned int64
	Released       bool
}

type fundsKey struct {
	potID   uint64
	cycleID uint64
}

type EscrowConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Adapter      YieldAdapter
	// Engine is the only principal allowed to call mutating entry points
	Engine string
}

// Escrow custodies contributed funds per (pot, cycle), parks idle principal
// with the yield adapter, and releases principal to declared winners. It is
// the only component that talks to the yield adapter.
type Escrow struct {
	config   EscrowConfig
	logger   *slog.Logger
	eventBus *event.EventBus
	adapter  YieldAdapter
	engine   string
	funds    map[fundsKey]*CycleFunds
	balances map[string]int64
	// Running totals for auditability
	totalDeposited    int64
	totalReleased     int64
	totalInterestPaid int64
	metrics           struct {
		deposited         prometheus.Counter
		released          prometheus.Counter
		interestHarvested prometheus.Counter
	}
	mu sync.Mutex
}

func New(config EscrowConfig) *Escrow {
	e := &Escrow{
		config:   config,
		eventBus: config.EventBus,
		adapter:  config.Adapter,
		engine:   config.Engine,
		funds:    make(map[fundsKey]*CycleFunds),
		balances: make(map[string]int64),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		e.logger = config.Logger
	}
	if config.PromRegistry != nil {
		promautoFactory := promauto.With(config.PromRegistry)
		e.metrics.deposited = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_escrow_deposited_units_total",
				Help: "total units deposited into escrow",
			},
		)
		e.metrics.released = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_escrow_released_units_total",
				Help: "total units released to winners",
			},
		)
		e.metrics.interestHarvested = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_escrow_interest_harvested_units_total",
				Help: "total interest units harvested from the yield adapter",
			},
		)
	}
	return e
}

// Deposit records a member contribution and forwards the principal to the
// yield adapter. An adapter failure aborts the whole operation with no state
// change.
func (e *Escrow) Deposit(
	caller string,
	potID uint64,
	cycleID uint64,
	payer string,
	amount int64,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.engine {
		return ErrNotEngine
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := e.adapter.Supply(potID, cycleID, amount); err != nil {
		return fmt.Errorf("supplying to yield adapter: %w", err)
	}
	funds := e.cycleFunds(potID, cycleID)
	funds.Principal += amount
	e.totalDeposited += amount
	if e.metrics.deposited != nil {
		e.metrics.deposited.Add(float64(amount))
	}
	e.logger.Debug(
		"deposit recorded",
		"component", "escrow",
		"pot", potID,
		"cycle", cycleID,
		"payer", payer,
		"amount", amount,
	)
	if e.eventBus != nil {
		e.eventBus.Publish(
			FundsDepositedEventType,
			event.NewEvent(
				FundsDepositedEventType,
				FundsDepositedEvent{
					PotID:   potID,
					CycleID: cycleID,
					Payer:   payer,
					Amount:  amount,
				},
			),
		)
	}
	return nil
}

// ReleaseFundsToWinner withdraws principal from the yield adapter and credits
// the winner. The adapter may return less than requested; the actual amount
// moved is returned. Funds for a cycle may be released at most once.
func (e *Escrow) ReleaseFundsToWinner(
	caller string,
	potID uint64,
	cycleID uint64,
	winner string,
	amount int64,
) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.engine {
		return 0, ErrNotEngine
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	key := fundsKey{potID: potID, cycleID: cycleID}
	funds, ok := e.funds[key]
	if !ok {
		return 0, ErrNoFunds
	}
	if funds.Released {
		return 0, ErrFundsAlreadyReleased
	}
	available := funds.Principal - funds.Withdrawn
	if amount > available {
		return 0, &InsufficientBalanceError{
			PotID:     potID,
			CycleID:   cycleID,
			Requested: amount,
			Available: available,
		}
	}
	actual, err := e.adapter.Withdraw(potID, cycleID, amount)
	if err != nil {
		return 0, fmt.Errorf("withdrawing from yield adapter: %w", err)
	}
	funds.Withdrawn += actual
	funds.Released = true
	e.balances[winner] += actual
	e.totalReleased += actual
	if e.metrics.released != nil {
		e.metrics.released.Add(float64(actual))
	}
	e.logger.Info(
		"funds released to winner",
		"component", "escrow",
		"pot", potID,
		"cycle", cycleID,
		"winner", winner,
		"amount", actual,
	)
	if e.eventBus != nil {
		e.eventBus.Publish(
			FundsReleasedEventType,
			event.NewEvent(
				FundsReleasedEventType,
				FundsReleasedEvent{
					PotID:   potID,
					CycleID: cycleID,
					Winner:  winner,
					Amount:  actual,
				},
			),
		)
	}
	return actual, nil
}

// CollectSpread pulls leftover cycle principal back from the yield adapter so
// it can be credited as interest shares. The leftover is the winning-bid
// discount that the winner payout does not consume; every credited unit must
// first be withdrawn here. Requests beyond the remaining principal are
// clamped.
func (e *Escrow) CollectSpread(
	caller string,
	potID uint64,
	cycleID uint64,
	amount int64,
) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.engine {
		return 0, ErrNotEngine
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	key := fundsKey{potID: potID, cycleID: cycleID}
	funds, ok := e.funds[key]
	if !ok {
		return 0, ErrNoFunds
	}
	available := funds.Principal - funds.Withdrawn
	if amount > available {
		amount = available
	}
	if amount <= 0 {
		return 0, nil
	}
	actual, err := e.adapter.Withdraw(potID, cycleID, amount)
	if err != nil {
		return 0, fmt.Errorf("withdrawing from yield adapter: %w", err)
	}
	funds.Withdrawn += actual
	e.logger.Debug(
		"spread collected",
		"component", "escrow",
		"pot", potID,
		"cycle", cycleID,
		"amount", actual,
	)
	return actual, nil
}

// WithdrawPotInterest harvests accrued interest for a cycle from the yield
// adapter. The harvested amount (possibly zero) is held by the escrow until
// distributed.
func (e *Escrow) WithdrawPotInterest(
	caller string,
	potID uint64,
	cycleID uint64,
) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.engine {
		return 0, ErrNotEngine
	}
	harvested, err := e.adapter.HarvestInterest(potID, cycleID)
	if err != nil {
		return 0, fmt.Errorf("harvesting interest: %w", err)
	}
	if harvested < 0 {
		return 0, fmt.Errorf(
			"yield adapter returned negative interest: %d",
			harvested,
		)
	}
	funds := e.cycleFunds(potID, cycleID)
	funds.InterestEarned = 0
	if e.metrics.interestHarvested != nil {
		e.metrics.interestHarvested.Add(float64(harvested))
	}
	e.logger.Debug(
		"interest harvested",
		"component", "escrow",
		"pot", potID,
		"cycle", cycleID,
		"amount", harvested,
	)
	if e.eventBus != nil {
		e.eventBus.Publish(
			InterestHarvestedEventType,
			event.NewEvent(
				InterestHarvestedEventType,
				InterestHarvestedEvent{
					PotID:   potID,
					CycleID: cycleID,
					Amount:  harvested,
				},
			),
		)
	}
	return harvested, nil
}

// AccruedInterest reports the interest currently accrued for a cycle and
// refreshes the tracked InterestEarned value. WithdrawPotInterest zeroes it.
func (e *Escrow) AccruedInterest(
	potID uint64,
	cycleID uint64,
) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	accrued, err := e.adapter.AccruedInterest(potID, cycleID)
	if err != nil {
		return 0, fmt.Errorf("querying accrued interest: %w", err)
	}
	funds := e.cycleFunds(potID, cycleID)
	funds.InterestEarned = accrued
	return accrued, nil
}

// Distribute credits a member's claimable balance with an interest share
func (e *Escrow) Distribute(
	caller string,
	potID uint64,
	cycleID uint64,
	member string,
	amount int64,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.engine {
		return ErrNotEngine
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	e.balances[member] += amount
	e.totalInterestPaid += amount
	return nil
}

// EmergencyWithdraw moves all unreleased principal to a rescue address. The
// engine gates this behind its paused state.
func (e *Escrow) EmergencyWithdraw(caller string, to string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.engine {
		return 0, ErrNotEngine
	}
	var total int64
	for _, funds := range e.funds {
		remaining := funds.Principal - funds.Withdrawn
		if remaining <= 0 {
			continue
		}
		actual, err := e.adapter.Withdraw(funds.PotID, funds.CycleID, remaining)
		if err != nil {
			return total, fmt.Errorf("withdrawing from yield adapter: %w", err)
		}
		funds.Withdrawn += actual
		total += actual
	}
	e.balances[to] += total
	e.logger.Warn(
		"emergency withdrawal",
		"component", "escrow",
		"to", to,
		"amount", total,
	)
	return total, nil
}

// CycleFunds returns a copy of the custody record for a (pot, cycle) pair
func (e *Escrow) CycleFunds(potID uint64, cycleID uint64) (CycleFunds, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	funds, ok := e.funds[fundsKey{potID: potID, cycleID: cycleID}]
	if !ok {
		return CycleFunds{}, false
	}
	return *funds, true
}

// BalanceOf returns a member's claimable balance
func (e *Escrow) BalanceOf(member string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[member]
}

// TotalDeposited returns the running total of all deposits
func (e *Escrow) TotalDeposited() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalDeposited
}

// TotalReleased returns the running total of all winner releases
func (e *Escrow) TotalReleased() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalReleased
}

// TotalInterestPaid returns the running total of distributed interest
func (e *Escrow) TotalInterestPaid() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalInterestPaid
}

// cycleFunds finds or creates the custody record for a (pot, cycle) pair.
// Callers must hold the lock.
func (e *Escrow) cycleFunds(potID uint64, cycleID uint64) *CycleFunds {
	key := fundsKey{potID: potID, cycleID: cycleID}
	funds, ok := e.funds[key]
	if !ok {
		funds = &CycleFunds{PotID: potID, CycleID: cycleID}
		e.funds[key] = funds
	}
	return funds
}
