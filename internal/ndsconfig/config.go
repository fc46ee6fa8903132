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

// Package ndsconfig loads the TOML configuration for an nds server.
package ndsconfig

import (
	"os"

	"github.com/naoina/toml"
)

// Config is the on-disk configuration for an nds server instance.
type Config struct {
	// Dir is the freezer environment's root directory.
	Dir string `toml:"datadir"`

	// Databases is N, the number of logical databases (freezer_0..N-1).
	Databases int `toml:"databases"`

	// MapSize reserves the freezer environment's address space, in bytes.
	MapSize int64 `toml:"mapsize"`

	// InterruptEvery controls how many keys a cursor walk (preload) visits
	// before yielding to the event loop.
	InterruptEvery int `toml:"interrupt_every"`

	// SnapshotDir is where SNAPSHOT copies the freezer environment to.
	SnapshotDir string `toml:"snapshot_dir"`

	// InfluxDB, when non-nil, enables metrics export.
	InfluxDB *InfluxDBConfig `toml:"influxdb"`
}

// InfluxDBConfig configures the metrics exporter.
type InfluxDBConfig struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
	Org      string `toml:"org"`
	Bucket   string `toml:"bucket"`
	Interval string `toml:"interval"`
}

// Defaults returns a conservative starting configuration: a 1 TiB map,
// 16 logical databases, and an interrupt rate of 1000 keys.
func Defaults() Config {
	return Config{
		Dir:            "./nds-data",
		Databases:      16,
		MapSize:        1 << 40,
		InterruptEvery: 1000,
		SnapshotDir:    "./snapshot",
	}
}

// Load reads and parses a TOML configuration file, merging it onto Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
