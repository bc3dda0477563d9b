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
	"sync"
	"time"
)

// YieldAdapter is the money-market boundary consumed by the escrow. The
// escrow makes no assumption beyond best-effort yield: Withdraw may return
// less than requested and interest may be zero.
type YieldAdapter interface {
	Supply(potID uint64, cycleID uint64, amount int64) error
	Withdraw(potID uint64, cycleID uint64, amount int64) (int64, error)
	AccruedInterest(potID uint64, cycleID uint64) (int64, error)
	HarvestInterest(potID uint64, cycleID uint64) (int64, error)
}

type yieldPosition struct {
	principal   int64
	accrued     int64
	lastAccrual time.Time
}

// LinearYieldAdapter is a reference adapter that accrues interest on parked
// principal at a fixed rate. Intended for dev mode and tests; production
// deployments plug in a real money-market integration.
type LinearYieldAdapter struct {
	positions map[fundsKey]*yieldPosition
	// RatePPMPerSecond is interest accrued per second, in parts-per-million
	// of parked principal
	ratePPMPerSecond int64
	now              func() time.Time
	mu               sync.Mutex
}

func NewLinearYieldAdapter(ratePPMPerSecond int64) *LinearYieldAdapter {
	return &LinearYieldAdapter{
		positions:        make(map[fundsKey]*yieldPosition),
		ratePPMPerSecond: ratePPMPerSecond,
		now:              time.Now,
	}
}

func (a *LinearYieldAdapter) Supply(
	potID uint64,
	cycleID uint64,
	amount int64,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.position(potID, cycleID)
	a.accrue(pos)
	pos.principal += amount
	return nil
}

func (a *LinearYieldAdapter) Withdraw(
	potID uint64,
	cycleID uint64,
	amount int64,
) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.position(potID, cycleID)
	a.accrue(pos)
	// Return whatever is available
	actual := min(amount, pos.principal)
	pos.principal -= actual
	return actual, nil
}

func (a *LinearYieldAdapter) AccruedInterest(
	potID uint64,
	cycleID uint64,
) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.position(potID, cycleID)
	a.accrue(pos)
	return pos.accrued, nil
}

func (a *LinearYieldAdapter) HarvestInterest(
	potID uint64,
	cycleID uint64,
) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.position(potID, cycleID)
	a.accrue(pos)
	harvested := pos.accrued
	pos.accrued = 0
	return harvested, nil
}

func (a *LinearYieldAdapter) position(
	potID uint64,
	cycleID uint64,
) *yieldPosition {
	key := fundsKey{potID: potID, cycleID: cycleID}
	pos, ok := a.positions[key]
	if !ok {
		pos = &yieldPosition{lastAccrual: a.now()}
		a.positions[key] = pos
	}
	return pos
}

// accrue folds elapsed whole seconds into the accrued interest. The accrual
// anchor only advances by the seconds consumed, so the sub-second remainder
// carries over instead of being dropped on every touch. Callers must hold the
// lock.
func (a *LinearYieldAdapter) accrue(pos *yieldPosition) {
	elapsed := a.now().Sub(pos.lastAccrual)
	whole := elapsed - elapsed%time.Second
	if whole <= 0 {
		return
	}
	if pos.principal > 0 {
		seconds := int64(whole / time.Second)
		pos.accrued += pos.principal * a.ratePPMPerSecond * seconds / 1_000_000
	}
	pos.lastAccrual = pos.lastAccrual.Add(whole)
}
