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

package oracle

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// DeliverFunc carries a resolved random word back to the oracle
type DeliverFunc func(requestID string, word uint64) error

// LocalRandomSource resolves requests with crypto/rand entropy, delivering
// asynchronously to mimic the out-of-band latency of a real VRF service.
// Intended for dev mode and tests.
type LocalRandomSource struct {
	deliver DeliverFunc
}

func NewLocalRandomSource(deliver DeliverFunc) *LocalRandomSource {
	return &LocalRandomSource{deliver: deliver}
}

func (s *LocalRandomSource) RequestRandomWords(requestID string) error {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Errorf("reading entropy: %w", err)
	}
	word := binary.BigEndian.Uint64(buf[:])
	go func() {
		// Delivery errors are the oracle's to report; a lost delivery is
		// recovered through the manual preview path
		_ = s.deliver(requestID, word)
	}()
	return nil
}
