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
	"sort"
)

// Pause halts all state-mutating operations engine-wide. Owner-only.
func (e *Engine) Pause(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	if e.paused {
		return ErrAlreadyPaused
	}
	e.paused = true
	e.logger.Warn(
		"engine paused",
		"component", "engine",
		"by", caller,
	)
	e.publish(EnginePausedEventType, EnginePausedEvent{By: caller})
	return nil
}

// Unpause resumes normal operation. Owner-only.
func (e *Engine) Unpause(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	if !e.paused {
		return ErrNotPaused
	}
	e.paused = false
	e.logger.Info(
		"engine unpaused",
		"component", "engine",
		"by", caller,
	)
	e.publish(EngineUnpausedEventType, EngineUnpausedEvent{By: caller})
	return nil
}

// PausePot halts operations on a single pot. Owner or pot creator.
func (e *Engine) PausePot(caller string, potID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return ErrEnginePaused
	}
	pot, ok := e.pots[potID]
	if !ok {
		return ErrPotNotFound
	}
	if caller != e.owner && caller != pot.Creator {
		return ErrNotOwner
	}
	if pot.Status == PotPaused {
		return ErrAlreadyPaused
	}
	pot.statusBeforePause = pot.Status
	pot.Status = PotPaused
	e.logger.Warn(
		"pot paused",
		"component", "engine",
		"pot", pot.ID,
		"by", caller,
	)
	e.publish(PotPausedEventType, PotPausedEvent{PotID: pot.ID})
	return nil
}

// ResumePot restores a paused pot to its prior status. Owner or pot creator.
func (e *Engine) ResumePot(caller string, potID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return ErrEnginePaused
	}
	pot, ok := e.pots[potID]
	if !ok {
		return ErrPotNotFound
	}
	if caller != e.owner && caller != pot.Creator {
		return ErrNotOwner
	}
	if pot.Status != PotPaused {
		return ErrPotNotPaused
	}
	pot.Status = pot.statusBeforePause
	e.logger.Info(
		"pot resumed",
		"component", "engine",
		"pot", pot.ID,
		"by", caller,
	)
	e.publish(PotResumedEventType, PotResumedEvent{PotID: pot.ID})
	return nil
}

// EmergencyWithdraw drains all escrowed funds to a recovery address. The
// engine must already be paused; this is the break-glass path for a
// compromised or wedged deployment.
func (e *Engine) EmergencyWithdraw(caller string, to string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return 0, ErrNotOwner
	}
	if !e.paused {
		return 0, ErrNotPaused
	}
	amount, err := e.escrow.EmergencyWithdraw(e.addr, to)
	if err != nil {
		return 0, err
	}
	e.logger.Warn(
		"emergency withdrawal",
		"component", "engine",
		"to", to,
		"amount", amount,
	)
	e.publish(EmergencyWithdrawalEventType, EmergencyWithdrawalEvent{
		To:     to,
		Amount: amount,
	})
	return amount, nil
}

// TransferOwnership hands engine administration to a new owner
func (e *Engine) TransferOwnership(caller string, newOwner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrNotOwner
	}
	prev := e.owner
	e.owner = newOwner
	e.logger.Info(
		"ownership transferred",
		"component", "engine",
		"from", prev,
		"to", newOwner,
	)
	e.publish(
		OwnershipTransferredEventType,
		OwnershipTransferredEvent{From: prev, To: newOwner},
	)
	return nil
}

// RenounceOwnership permanently removes the owner. Pause, unpause, and
// emergency withdrawal become unreachable afterward.
func (e *Engine) RenounceOwnership(caller string) error {
	return e.TransferOwnership(caller, "")
}

// Owner returns the current engine owner, or empty after renouncement
func (e *Engine) Owner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// Paused reports whether the engine is globally paused
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// GetPot returns a snapshot of a pot
func (e *Engine) GetPot(potID uint64) (Pot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pot, ok := e.pots[potID]
	if !ok {
		return Pot{}, ErrPotNotFound
	}
	ret := *pot
	ret.Members = slices.Clone(pot.Members)
	return ret, nil
}

// GetCycle returns a snapshot of a cycle
func (e *Engine) GetCycle(cycleID uint64) (Cycle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, ok := e.cycles[cycleID]
	if !ok {
		return Cycle{}, ErrCycleNotFound
	}
	ret := *cycle
	ret.Participants = slices.Clone(cycle.Participants)
	ret.paid = nil
	ret.bids = nil
	return ret, nil
}

// Bids returns all bids for a cycle in submission order
func (e *Engine) Bids(cycleID uint64) ([]Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, ok := e.cycles[cycleID]
	if !ok {
		return nil, ErrCycleNotFound
	}
	ret := make([]Bid, 0, len(cycle.bids))
	for _, bid := range cycle.bids {
		ret = append(ret, *bid)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].seq < ret[j].seq
	})
	return ret, nil
}

// Members returns a pot's roster in join order
func (e *Engine) Members(potID uint64) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pot, ok := e.pots[potID]
	if !ok {
		return nil, ErrPotNotFound
	}
	return slices.Clone(pot.Members), nil
}

// Pots returns snapshots of all pots ordered by id
func (e *Engine) Pots() []Pot {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make([]Pot, 0, len(e.pots))
	for _, pot := range e.pots {
		tmp := *pot
		tmp.Members = slices.Clone(pot.Members)
		ret = append(ret, tmp)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID < ret[j].ID
	})
	return ret
}

