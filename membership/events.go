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

package membership

import "github.com/rondolabs/rondo/event"

const (
	MemberRegisteredEventType  event.EventType = "membership.registered"
	ReputationUpdatedEventType event.EventType = "membership.reputation_updated"
)

type MemberRegisteredEvent struct {
	Member     string
	Reputation int64
}

// ReputationUpdatedEvent is emitted for every reputation delta so external
// indexers can reconstruct score history without re-querying
type ReputationUpdatedEvent struct {
	Member   string
	Reason   string
	Delta    int64
	NewScore int64
}
