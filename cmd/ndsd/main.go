// ndsd runs a disk-backed spillover store as a standalone daemon.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/ndsdb/nds/internal/flags"
	"github.com/ndsdb/nds/internal/log"
	"github.com/ndsdb/nds/internal/ndsconfig"
	"github.com/ndsdb/nds/metrics"
	"github.com/ndsdb/nds/nds"
)

var (
	app *cli.App

	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "address to accept line-protocol connections on",
		Value: "127.0.0.1:5330",
	}
	tickFlag = &cli.DurationFlag{
		Name:  "tick",
		Usage: "how often the event loop polls for a finished flush child",
		Value: 50 * time.Millisecond,
	}
)

func init() {
	app = flags.NewApp("a disk-backed spillover store for an in-memory key/value server")
	app.Name = "ndsd"
	app.Flags = []cli.Flag{
		flags.ConfigFileFlag,
		listenFlag,
		tickFlag,
	}
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Crit("ndsd failed", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg := ndsconfig.Defaults()
	if path := c.String(flags.ConfigFileFlag.Name); path != "" {
		var err error
		cfg, err = ndsconfig.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	server, err := nds.NewServer(nds.Options{
		Databases:      cfg.Databases,
		Dir:            cfg.Dir,
		MapSize:        cfg.MapSize,
		SnapshotDir:    cfg.SnapshotDir,
		InterruptEvery: cfg.InterruptEvery,
	})
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer server.Close()

	if cfg.InfluxDB != nil {
		interval, err := time.ParseDuration(cfg.InfluxDB.Interval)
		if err != nil {
			interval = 10 * time.Second
		}
		reporter := metrics.NewInfluxDBReporter(
			cfg.InfluxDB.Endpoint, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket, interval,
		)
		reporter.Start()
		defer reporter.Stop()
	}

	loop := newEventLoop(server)
	go loop.run(c.Duration(tickFlag.Name))

	ln, err := net.Listen("tcp", c.String(listenFlag.Name))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	defer ln.Close()
	log.Info("ndsd listening", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go handleConn(conn, loop)
	}
}

// command is one parsed client request, submitted to the event loop's
// single-threaded command queue.
type command struct {
	verb  string
	args  []string
	reply chan reply
}

// reply is either an immediate textual result, or — for FLUSH/SNAPSHOT,
// which park the caller until a background child finishes — a channel the
// connection goroutine waits on without blocking the event loop itself.
type reply struct {
	text    string
	pending chan string
}

// eventLoop serializes every Server call onto one goroutine, the
// single-threaded cooperative foreground the server requires. Dispatching
// a command never blocks here: starting a flush/snapshot only hands off a
// done-channel, it never waits for the child to finish.
type eventLoop struct {
	server *nds.Server
	cmds   chan *command
}

func newEventLoop(server *nds.Server) *eventLoop {
	return &eventLoop{server: server, cmds: make(chan *command, 256)}
}

func (l *eventLoop) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case cmd := <-l.cmds:
			cmd.reply <- l.dispatch(cmd)
		case <-ticker.C:
			l.server.Tick()
		}
	}
}

func (l *eventLoop) submit(verb string, args []string) string {
	cmd := &command{verb: verb, args: args, reply: make(chan reply, 1)}
	l.cmds <- cmd
	r := <-cmd.reply
	if r.pending != nil {
		return <-r.pending
	}
	return r.text
}

// connReplier adapts a pending admin command's eventual result back into
// the textual reply protocol, delivered asynchronously by the event loop's
// Tick once the flush/snapshot child completes.
type connReplier struct {
	done chan string
}

func (r *connReplier) Reply(err error) {
	if err != nil {
		r.done <- "ERR consult logs: " + err.Error()
		return
	}
	r.done <- "OK"
}

func (l *eventLoop) dispatch(cmd *command) reply {
	switch cmd.verb {
	case "GET":
		if len(cmd.args) != 2 {
			return reply{text: "ERR wrong number of arguments for GET"}
		}
		ldb, err := strconv.Atoi(cmd.args[0])
		if err != nil || ldb < 0 || ldb >= l.server.N() {
			return reply{text: "ERR bad ldb"}
		}
		if v, ok := l.server.LiveGet(ldb, []byte(cmd.args[1])); ok {
			return reply{text: "VALUE " + string(v)}
		}
		v, err := l.server.Get(ldb, []byte(cmd.args[1]))
		if err != nil {
			return reply{text: "ERR " + err.Error()}
		}
		if v == nil {
			return reply{text: "NIL"}
		}
		return reply{text: "VALUE " + string(v)}

	case "SET":
		if len(cmd.args) != 3 {
			return reply{text: "ERR wrong number of arguments for SET"}
		}
		ldb, err := strconv.Atoi(cmd.args[0])
		if err != nil || ldb < 0 || ldb >= l.server.N() {
			return reply{text: "ERR bad ldb"}
		}
		l.server.SetLive(ldb, []byte(cmd.args[1]), []byte(cmd.args[2]))
		return reply{text: "OK"}

	case "DEL":
		if len(cmd.args) != 2 {
			return reply{text: "ERR wrong number of arguments for DEL"}
		}
		ldb, err := strconv.Atoi(cmd.args[0])
		if err != nil || ldb < 0 || ldb >= l.server.N() {
			return reply{text: "ERR bad ldb"}
		}
		l.server.DeleteLive(ldb, []byte(cmd.args[1]))
		return reply{text: "OK"}

	case "NDS":
		if len(cmd.args) == 0 {
			return reply{text: "ERR wrong number of arguments for NDS"}
		}
		sub, rest := cmd.args[0], cmd.args[1:]
		done := make(chan string, 1)
		if err := l.server.Dispatch(sub, rest, &connReplier{done: done}); err != nil {
			return reply{text: "ERR " + err.Error()}
		}
		switch strings.ToUpper(sub) {
		case "FLUSH", "SNAPSHOT":
			// Dispatch only started the background child; the result
			// arrives later, off a Tick. The connection goroutine, not the
			// event loop, waits for it.
			return reply{pending: done}
		default:
			// CLEARSTATS/PRELOAD already ran synchronously inside Dispatch
			// and Reply was called before it returned.
			return reply{text: <-done}
		}

	default:
		return reply{text: "ERR unknown command"}
	}
}

func handleConn(conn net.Conn, loop *eventLoop) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		verb := strings.ToUpper(fields[0])
		resp := loop.submit(verb, fields[1:])
		fmt.Fprintln(conn, resp)
	}
}
