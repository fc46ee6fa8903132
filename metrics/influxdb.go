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

package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ndsdb/nds/internal/log"
)

// InfluxDBReporter periodically pushes the default registry to InfluxDB.
type InfluxDBReporter struct {
	client   influxdb2.Client
	org      string
	bucket   string
	interval time.Duration
	quit     chan struct{}
}

// NewInfluxDBReporter dials (lazily; influxdb2.NewClient never blocks) an
// InfluxDB endpoint for periodic metric export.
func NewInfluxDBReporter(endpoint, token, org, bucket string, interval time.Duration) *InfluxDBReporter {
	return &InfluxDBReporter{
		client:   influxdb2.NewClient(endpoint, token),
		org:      org,
		bucket:   bucket,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

// Start launches the periodic export loop in its own goroutine.
func (r *InfluxDBReporter) Start() {
	go r.loop()
}

// Stop halts the export loop and releases the client's connection pool.
func (r *InfluxDBReporter) Stop() {
	close(r.quit)
	r.client.Close()
}

func (r *InfluxDBReporter) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reportOnce()
		case <-r.quit:
			return
		}
	}
}

func (r *InfluxDBReporter) reportOnce() {
	writeAPI := r.client.WriteAPIBlocking(r.org, r.bucket)
	snap := Each()
	now := time.Now()

	points := make([]*write.Point, 0, len(snap.Counters)+len(snap.Gauges))
	for name, v := range snap.Counters {
		points = append(points, influxdb2.NewPoint("nds_counter",
			map[string]string{"name": name},
			map[string]interface{}{"value": v},
			now,
		))
	}
	for name, v := range snap.Gauges {
		points = append(points, influxdb2.NewPoint("nds_gauge",
			map[string]string{"name": name},
			map[string]interface{}{"value": v},
			now,
		))
	}
	if err := writeAPI.WritePoint(context.Background(), points...); err != nil {
		log.Warn("Failed to push metrics to influxdb", "err", err)
	}
}
