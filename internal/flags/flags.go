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

// Package flags wires a couple of urfave/cli conventions shared across
// every nds binary, so they all look and behave the same.
package flags

import "github.com/urfave/cli/v2"

// NewApp creates an app with sane defaults shared by every nds binary.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = usage
	app.Copyright = "Copyright 2013-2024 The nds Authors"
	app.Before = func(ctx *cli.Context) error {
		return nil
	}
	return app
}

// ConfigFileFlag is shared by every nds subcommand that accepts a TOML
// configuration file.
var ConfigFileFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}
