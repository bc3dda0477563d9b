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

package rondo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rondolabs/rondo/auditlog"
	"github.com/rondolabs/rondo/escrow"
	"github.com/rondolabs/rondo/event"
	"github.com/rondolabs/rondo/membership"
	"github.com/rondolabs/rondo/oracle"
	"github.com/rondolabs/rondo/pot"
)

// Node assembles the full engine stack: event bus, membership ledger, escrow,
// randomness oracle, pot cycle engine, and audit log, wired together with the
// cross-component trust grants they need.
type Node struct {
	eventBus     *event.EventBus
	members      *membership.Ledger
	escrow       *escrow.Escrow
	oracle       *oracle.Oracle
	engine       *pot.Engine
	auditLog     *auditlog.AuditLog
	config       Config
	done         chan struct{}
	shutdownOnce sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Run assembles and starts the engine stack, then blocks until Stop is called
func (n *Node) Run() error {
	if err := n.start(); err != nil {
		return err
	}
	<-n.done
	return nil
}

// Start assembles and starts the engine stack without blocking
func (n *Node) Start() error {
	return n.start()
}

func (n *Node) start() error {
	n.eventBus = event.NewEventBus(n.config.promRegistry, n.config.logger)
	// Membership ledger, owned by the configured admin principal
	n.members = membership.NewLedger(membership.LedgerConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Owner:        n.config.owner,
	})
	// Escrow with its yield adapter
	yieldAdapter := n.config.yieldAdapter
	if yieldAdapter == nil {
		yieldAdapter = escrow.NewLinearYieldAdapter(n.config.yieldRatePPM)
	}
	n.escrow = escrow.New(escrow.EscrowConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Adapter:      yieldAdapter,
		Engine:       pot.DefaultAddr,
	})
	// Randomness oracle; the default local source delivers entropy back
	// through the oracle's own callback
	randomSource := n.config.randomSource
	if randomSource == nil {
		randomSource = oracle.NewLocalRandomSource(
			func(requestID string, word uint64) error {
				return n.oracle.HandleRandomWords(requestID, word)
			},
		)
	}
	n.oracle = oracle.New(oracle.OracleConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Source:       randomSource,
	})
	// Engine, registered as the oracle's fulfillment target
	n.engine = pot.NewEngine(pot.EngineConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Escrow:       n.escrow,
		Members:      n.members,
		Oracle:       n.oracle,
		Owner:        n.config.owner,
	})
	n.oracle.SetFulfiller(n.engine)
	// Grant the engine write access to member profiles
	err := n.members.AddAuthorizedCaller(n.config.owner, n.engine.Addr())
	if err != nil && !errors.Is(err, membership.ErrAlreadyAuthorized) {
		return fmt.Errorf("authorizing engine on membership ledger: %w", err)
	}
	if n.config.auditLog {
		a, err := auditlog.New(auditlog.AuditLogConfig{
			Logger:       n.config.logger,
			EventBus:     n.eventBus,
			PromRegistry: n.config.promRegistry,
			DataDir:      n.config.dataDir,
		})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		n.auditLog = a
	}
	n.config.logger.Info(
		"engine started",
		"component", "node",
		"owner", n.config.owner,
	)
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	var err error

	n.config.logger.Debug("starting graceful shutdown")

	if n.auditLog != nil {
		if closeErr := n.auditLog.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("audit log close: %w", closeErr),
			)
		}
	}

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}

// Engine returns the pot cycle engine
func (n *Node) Engine() *pot.Engine {
	return n.engine
}

// Members returns the membership ledger
func (n *Node) Members() *membership.Ledger {
	return n.members
}

// Escrow returns the escrow
func (n *Node) Escrow() *escrow.Escrow {
	return n.escrow
}

// Oracle returns the randomness oracle
func (n *Node) Oracle() *oracle.Oracle {
	return n.oracle
}

// AuditLog returns the audit log, or nil when disabled
func (n *Node) AuditLog() *auditlog.AuditLog {
	return n.auditLog
}
