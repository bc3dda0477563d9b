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
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rondolabs/rondo/event"
)

// DefaultAddr is the principal the oracle presents when invoking the engine's
// fulfillment entry point
const DefaultAddr = "oracle"

var (
	ErrNoCandidates     = errors.New("candidate list is empty")
	ErrUnknownRequest   = errors.New("unknown randomness request")
	ErrAlreadyFulfilled = errors.New("request already fulfilled")
	ErrNotFulfilled     = errors.New("request not yet fulfilled")
	ErrNoFulfiller      = errors.New("no fulfiller registered")
)

// RandomSource is the external verifiable-randomness boundary. A source must
// deliver exactly one random word per request id, out-of-band at unspecified
// latency, by calling the deliver function it was constructed with.
type RandomSource interface {
	RequestRandomWords(requestID string) error
}

// Fulfiller receives the selected candidate once a request resolves. The
// engine registers itself here after construction.
type Fulfiller interface {
	FulfillRandomWinner(caller string, requestID string, selected string) error
}

// Request is an outstanding randomness request over a candidate snapshot
type Request struct {
	ID         string
	Candidates []string
	Word       uint64
	Fulfilled  bool
	CreatedAt  time.Time
}

type OracleConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Source       RandomSource
	// Addr is the oracle's principal; defaults to DefaultAddr
	Addr string
}

// Oracle accepts randomness requests over candidate member lists and resolves
// each to one candidate. Resolution converges through two paths: the inbound
// source callback and the idempotent preview poll, both guarded by the
// request's fulfilled flag.
type Oracle struct {
	config    OracleConfig
	logger    *slog.Logger
	eventBus  *event.EventBus
	source    RandomSource
	fulfiller Fulfiller
	addr      string
	requests  map[string]*Request
	metrics   struct {
		requests  prometheus.Counter
		fulfilled prometheus.Counter
	}
	mu sync.Mutex
}

func New(config OracleConfig) *Oracle {
	o := &Oracle{
		config:   config,
		eventBus: config.EventBus,
		source:   config.Source,
		addr:     config.Addr,
		requests: make(map[string]*Request),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		o.logger = config.Logger
	}
	if o.addr == "" {
		o.addr = DefaultAddr
	}
	if config.PromRegistry != nil {
		promautoFactory := promauto.With(config.PromRegistry)
		o.metrics.requests = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_randomness_requests_total",
				Help: "total randomness requests issued",
			},
		)
		o.metrics.fulfilled = promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "rondo_randomness_fulfillments_total",
				Help: "total randomness requests fulfilled",
			},
		)
	}
	return o
}

// Addr returns the oracle's principal
func (o *Oracle) Addr() string {
	return o.addr
}

// SetFulfiller registers the engine's fulfillment entry point. Wiring happens
// after construction because the engine also holds a reference to the oracle.
func (o *Oracle) SetFulfiller(f Fulfiller) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfiller = f
}

// RequestRandomWinner snapshots the candidate list, forwards the request to
// the external randomness source, and returns the request id without blocking
// on resolution.
func (o *Oracle) RequestRandomWinner(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}
	requestID := uuid.NewString()
	o.mu.Lock()
	o.requests[requestID] = &Request{
		ID:         requestID,
		Candidates: slices.Clone(candidates),
		CreatedAt:  time.Now(),
	}
	o.mu.Unlock()
	if err := o.source.RequestRandomWords(requestID); err != nil {
		o.mu.Lock()
		delete(o.requests, requestID)
		o.mu.Unlock()
		return "", err
	}
	if o.metrics.requests != nil {
		o.metrics.requests.Inc()
	}
	o.logger.Info(
		"randomness requested",
		"component", "oracle",
		"request_id", requestID,
		"candidates", len(candidates),
	)
	return requestID, nil
}

// HandleRandomWords is the callback invoked by the external randomness
// source. It records the random word, maps it to a candidate, and invokes the
// engine's fulfillment entry point. A second delivery for the same request is
// rejected.
func (o *Oracle) HandleRandomWords(requestID string, word uint64) error {
	o.mu.Lock()
	req, ok := o.requests[requestID]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownRequest
	}
	if req.Fulfilled {
		o.mu.Unlock()
		return ErrAlreadyFulfilled
	}
	req.Word = word
	req.Fulfilled = true
	selected := req.Candidates[word%uint64(len(req.Candidates))]
	fulfiller := o.fulfiller
	o.mu.Unlock()
	if o.metrics.fulfilled != nil {
		o.metrics.fulfilled.Inc()
	}
	o.logger.Info(
		"randomness delivered",
		"component", "oracle",
		"request_id", requestID,
		"selected", selected,
	)
	if fulfiller == nil {
		return ErrNoFulfiller
	}
	if err := o.fulfillEngine(fulfiller, requestID, selected); err != nil {
		// The word is recorded either way; the manual preview path can
		// still resolve the cycle
		o.logger.Warn(
			"engine fulfillment failed",
			"component", "oracle",
			"request_id", requestID,
			"error", err,
		)
		return err
	}
	return nil
}

// PreviewRandomWinner returns the already-resolved selection for a request
// without invoking the engine. Used by the engine's manual recovery path when
// the callback was lost.
func (o *Oracle) PreviewRandomWinner(requestID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.requests[requestID]
	if !ok {
		return "", ErrUnknownRequest
	}
	if !req.Fulfilled {
		return "", ErrNotFulfilled
	}
	return req.Candidates[req.Word%uint64(len(req.Candidates))], nil
}

// GetRequest returns a copy of a tracked request
func (o *Oracle) GetRequest(requestID string) (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.requests[requestID]
	if !ok {
		return Request{}, false
	}
	ret := *req
	ret.Candidates = slices.Clone(req.Candidates)
	return ret, true
}

func (o *Oracle) fulfillEngine(
	fulfiller Fulfiller,
	requestID string,
	selected string,
) error {
	return fulfiller.FulfillRandomWinner(o.addr, requestID, selected)
}
