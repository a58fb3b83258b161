// Command loadship ships load-test sample results to an Elasticsearch
// bulk endpoint.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/deixis/loadship"
	"github.com/deixis/loadship/internal/config"
	shipmcp "github.com/deixis/loadship/internal/mcp"
	"github.com/deixis/loadship/internal/report"
	"github.com/deixis/loadship/internal/sample"
	"github.com/deixis/loadship/internal/session"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("loadship: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "mcp":
		err = mcpMain(args)
	case "replay":
		err = replayMain(args)
	case "version":
		fmt.Println(loadship.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "loadship: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: loadship <command> [flags]

Commands:
  mcp         Serve the ingest surface over MCP (stdio or HTTP)
  replay      Ship result trees read as NDJSON from files or stdin
  version     Print the version
  help        Show this help

Use "loadship <command> -h" for command-specific flags.`)
}

// newSession loads configuration and starts a session with a report
// store and an externally-fed thread-stats source.
func newSession(configPath string) (*session.Session, *session.LatestStats, report.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	stats := &session.LatestStats{}
	store := report.NewMemStore(5, report.NewDiskStore(""))
	sess, err := session.New(cfg, session.WithStatsSource(stats), session.WithStore(store))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("starting session: %w", err)
	}
	return sess, stats, store, nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", ".loadship", "path to the YAML config file")
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(shipmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, stats, store, err := newSession(*configPath)
	if err != nil {
		return err
	}
	defer func() {
		// Final flush happens outside the interrupted context.
		if err := sess.Close(context.Background()); err != nil {
			log.Printf("closing session: %v", err)
		}
	}()

	log.Printf("run %s", sess.RunID())

	server := shipmcp.NewServer(sess, stats, store)

	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- replay ---

// replayLine is one NDJSON input record: a result tree plus an optional
// thread-pool snapshot taken when the tree was produced.
type replayLine struct {
	Result  *sample.Result      `json:"result"`
	Threads *sample.ThreadStats `json:"threads,omitempty"`
}

func replayMain(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", ".loadship", "path to the YAML config file")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, stats, _, err := newSession(*configPath)
	if err != nil {
		return err
	}

	trees := 0
	replay := func(r io.Reader, name string) error {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			if ctx.Err() != nil {
				return ctx.Err()
			}
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}

			var rec replayLine
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("%s:%d: %w", name, lineNo, err)
			}
			if rec.Result == nil {
				// Bare tree without an envelope.
				rec.Result = &sample.Result{}
				if err := json.Unmarshal(line, rec.Result); err != nil {
					return fmt.Errorf("%s:%d: %w", name, lineNo, err)
				}
			}
			if rec.Threads != nil {
				stats.Set(*rec.Threads)
			}
			if err := sess.Handle(ctx, rec.Result); err != nil {
				return err
			}
			trees++
		}
		return sc.Err()
	}

	var replayErr error
	if fs.NArg() == 0 {
		replayErr = replay(os.Stdin, "stdin")
	} else {
		for _, path := range fs.Args() {
			f, err := os.Open(path)
			if err != nil {
				replayErr = err
				break
			}
			replayErr = replay(f, path)
			f.Close()
			if replayErr != nil {
				break
			}
		}
	}

	if err := sess.Close(context.Background()); err != nil {
		log.Printf("closing session: %v", err)
	}

	rep := sess.Report()
	fmt.Printf("Run: %s\n", rep.RunID)
	fmt.Printf("Trees replayed: %d\n", trees)
	fmt.Printf("Documents encoded: %d, shipped: %d\n", rep.Documents, rep.Shipped())
	if n := rep.Failures(); n > 0 {
		fmt.Printf("Failed bulk calls: %d\n", n)
	}

	return replayErr
}
