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

package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const EventQueueSize = 20

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]chan Event
	metrics     *eventMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	Logger      *slog.Logger
}

type eventMetrics struct {
	eventsTotal *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]chan Event),
		Logger:      logger,
	}
	if promRegistry != nil {
		promautoFactory := promauto.With(promRegistry)
		e.metrics = &eventMetrics{
			eventsTotal: promautoFactory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rondo_events_total",
					Help: "total events published by type",
				},
				[]string{"type"},
			),
			subscribers: promautoFactory.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "rondo_event_subscribers",
					Help: "current count of event subscribers by type",
				},
				[]string{"type"},
			),
		}
	}
	return e
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	evtCh := make(chan Event, EventQueueSize)
	subId := e.lastSubId + 1
	e.lastSubId = subId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]chan Event)
	}
	e.subscribers[eventType][subId] = evtCh
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subId, evtCh
}

// SubscribeFunc allows a consumer to receive events of a particular type via a callback function
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func(evtCh <-chan Event, handlerFunc EventHandlerFunc) {
		for {
			evt, ok := <-evtCh
			if !ok {
				return
			}
			handlerFunc(evt)
		}
	}(evtCh, handlerFunc)
	return subId
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if evtCh, ok2 := evtTypeSubs[subId]; ok2 {
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			close(evtCh)
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
			}
		}
	}
}

// Publish allows a producer to send an event of a particular type to all subscribers
func (e *EventBus) Publish(eventType EventType, evt Event) {
	// Build list of channels inside read lock to avoid map race condition
	e.mu.RLock()
	subs := e.subscribers[eventType]
	evtChans := make([]chan Event, 0, len(subs))
	for _, evtCh := range subs {
		evtChans = append(evtChans, evtCh)
	}
	e.mu.RUnlock()
	// Send on gathered channels outside the lock so a slow subscriber cannot
	// wedge Unsubscribe or Stop behind a blocked publisher
	for _, evtCh := range evtChans {
		e.deliver(eventType, evtCh, evt)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
	if e.Logger != nil {
		e.Logger.Debug(
			"published event",
			"component", "eventbus",
			"type", eventType,
		)
	}
}

// deliver sends an event on a single subscriber channel. A channel closed by
// a concurrent Unsubscribe or Stop panics on send; that counts as delivery to
// a departed subscriber.
func (e *EventBus) deliver(eventType EventType, evtCh chan Event, evt Event) {
	defer func() {
		if r := recover(); r != nil && e.Logger != nil {
			e.Logger.Debug(
				"event delivery to departed subscriber",
				"component", "eventbus",
				"type", eventType,
			)
		}
	}()
	evtCh <- evt
}

// Stop closes all subscriber channels and clears the subscribers map. This
// ensures that SubscribeFunc goroutines exit cleanly during shutdown.
func (e *EventBus) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for evtType, evtTypeSubs := range e.subscribers {
		for _, evtCh := range evtTypeSubs {
			close(evtCh)
		}
		delete(e.subscribers, evtType)
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
}
