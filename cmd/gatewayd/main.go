// Command gatewayd runs the federated gateway as a standalone HTTP server.
// Reading the composed SDL from disk and the subgraph list from flags is
// peripheral wiring (spec §1: configuration file parsing is a non-goal);
// schema.Build itself still only ever sees a pre-composed SDL string and a
// slice of schema.SubgraphConfig.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/graphfed/engine/executor"
	"github.com/graphfed/engine/gateway"
	"github.com/graphfed/engine/logger"
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/schema"
)

const usage = `gatewayd FLAGS:
  -sdl <file>              Composed supergraph SDL (required)
  -addr <addr>             HTTP listen address (default: :8080)
  -subgraph name=url       Register a subgraph endpoint. Repeatable
  -timeout <duration>      Gateway-wide request deadline (default: 10s)
  -concurrency <n>         Max concurrent outbound subgraph calls (default: 32)
  -log-level <level>       debug, info, warn, or error (default: info)
`

type subgraphFlag struct {
	configs []schema.SubgraphConfig
}

func (s *subgraphFlag) String() string { return "" }

func (s *subgraphFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid -subgraph %q, expected name=url", v)
	}
	s.configs = append(s.configs, schema.SubgraphConfig{Name: parts[0], URL: parts[1]})
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	sdlPath := ""
	addr := ":8080"
	timeout := 10 * time.Second
	concurrency := 32
	logLevel := "info"
	var subgraphs subgraphFlag

	fs := flag.NewFlagSet("gatewayd", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&sdlPath, "sdl", sdlPath, "Composed supergraph SDL")
	fs.StringVar(&addr, "addr", addr, "HTTP listen address")
	fs.Var(&subgraphs, "subgraph", "Register a subgraph endpoint (name=url)")
	fs.DurationVar(&timeout, "timeout", timeout, "Gateway-wide request deadline")
	fs.IntVar(&concurrency, "concurrency", concurrency, "Max concurrent outbound subgraph calls")
	fs.StringVar(&logLevel, "log-level", logLevel, "debug, info, warn, or error")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, usage)
		return err
	}
	if sdlPath == "" {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("-sdl is required")
	}

	sdl, err := os.ReadFile(sdlPath)
	if err != nil {
		return fmt.Errorf("reading sdl: %w", err)
	}

	sch, err := schema.Build(string(sdl), subgraphs.configs)
	if err != nil {
		return fmt.Errorf("building schema: %w", err)
	}

	coordinator := executor.NewCoordinator(sch, executor.NewHTTPTransport(sch, nil), concurrency)

	gw := &gateway.Gateway{
		Schema:      sch,
		Coordinator: coordinator,
		Timeout:     timeout,
		Limits:      operation.Limits{},
		Logger:      logger.NewWithLevel(os.Stderr, logger.ParseLevel(logLevel)),
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", gw)

	log.Printf("gatewayd listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
