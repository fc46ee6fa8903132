// Copyright 2024 The nds Authors
// This file is part of the nds library.
//
// The nds library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The nds library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the nds library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics is a small named-metric registry in the style of the
// teacher's own metrics package (see core/vote/vote_pool.go's
// metrics.NewRegisteredCounter/NewRegisteredGauge calls).
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonically-adjustable integer metric.
type Counter struct {
	v int64
}

func (c *Counter) Inc(delta int64) { atomic.AddInt64(&c.v, delta) }
func (c *Counter) Dec(delta int64) { atomic.AddInt64(&c.v, -delta) }
func (c *Counter) Count() int64    { return atomic.LoadInt64(&c.v) }
func (c *Counter) Clear()          { atomic.StoreInt64(&c.v, 0) }

// Gauge holds the last reported value of a metric.
type Gauge struct {
	v int64
}

func (g *Gauge) Update(value int64) { atomic.StoreInt64(&g.v, value) }
func (g *Gauge) Value() int64       { return atomic.LoadInt64(&g.v) }

type registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

var defaultRegistry = &registry{
	counters: make(map[string]*Counter),
	gauges:   make(map[string]*Gauge),
}

// NewRegisteredCounter creates (or returns the existing) named counter.
// The registry parameter is accepted for API parity with callers that pass
// a nil default registry.
func NewRegisteredCounter(name string, _ interface{}) *Counter {
	return GetOrRegisterCounter(name)
}

// NewRegisteredGauge creates (or returns the existing) named gauge.
func NewRegisteredGauge(name string, _ interface{}) *Gauge {
	return GetOrRegisterGauge(name)
}

func GetOrRegisterCounter(name string) *Counter {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if c, ok := defaultRegistry.counters[name]; ok {
		return c
	}
	c := &Counter{}
	defaultRegistry.counters[name] = c
	return c
}

func GetOrRegisterGauge(name string) *Gauge {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if g, ok := defaultRegistry.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	defaultRegistry.gauges[name] = g
	return g
}

// Snapshot is a point-in-time read of every registered metric, keyed by name.
type Snapshot struct {
	Counters map[string]int64
	Gauges   map[string]int64
}

// Each takes a consistent snapshot of the default registry.
func Each() Snapshot {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	snap := Snapshot{
		Counters: make(map[string]int64, len(defaultRegistry.counters)),
		Gauges:   make(map[string]int64, len(defaultRegistry.gauges)),
	}
	for name, c := range defaultRegistry.counters {
		snap.Counters[name] = c.Count()
	}
	for name, g := range defaultRegistry.gauges {
		snap.Gauges[name] = g.Value()
	}
	return snap
}
