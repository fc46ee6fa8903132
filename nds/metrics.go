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

package nds

import "github.com/ndsdb/nds/metrics"

// The counters below are the operational surface worth exposing: flush
// successes/failures, cache hits/misses. Dirty/flushing counts and the
// preload flag are derived on demand (Server.DirtyCount, etc.) rather than
// mirrored here, since they're already authoritative in the tracker.
var (
	flushSuccessCounter = metrics.NewRegisteredCounter("nds/flush/success", nil)
	flushFailureCounter = metrics.NewRegisteredCounter("nds/flush/failure", nil)
	cacheHitCounter     = metrics.NewRegisteredCounter("nds/cache/hit", nil)
	cacheMissCounter    = metrics.NewRegisteredCounter("nds/cache/miss", nil)
)

// ClearStats zeroes the hit/miss counters, implementing the CLEARSTATS admin
// command. Flush success/failure counters are left alone: they are an
// operational history, not a per-session cache statistic.
func ClearStats() {
	cacheHitCounter.Clear()
	cacheMissCounter.Clear()
}
