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

import "github.com/rondolabs/rondo/event"

const (
	FundsDepositedEventType    event.EventType = "escrow.funds_deposited"
	FundsReleasedEventType     event.EventType = "escrow.funds_released"
	InterestHarvestedEventType event.EventType = "escrow.interest_harvested"
)

type FundsDepositedEvent struct {
	Payer   string
	PotID   uint64
	CycleID uint64
	Amount  int64
}

type FundsReleasedEvent struct {
	Winner  string
	PotID   uint64
	CycleID uint64
	Amount  int64
}

type InterestHarvestedEvent struct {
	PotID   uint64
	CycleID uint64
	Amount  int64
}
