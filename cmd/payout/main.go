/*
main.go - Command-line payout calculator

PURPOSE:
  Computes per-person summaries, the payout distribution and totals for
  a workspace document without running a server.

USAGE:
  payout -f workspace.yaml
  payout -f workspace.json -format json
  cat workspace.yaml | payout -f - -input yaml

FLAGS:
  -f          workspace file, "-" for stdin (required)
  -input      json or yaml; default from the file extension
  -format     table or json (default: table)
  -log-level  debug, info, warn, error

SEE ALSO:
  - factory/workspace.go: Document format
  - render.go: Output formats
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/logging"
	"github.com/warp/payout-engine/payout"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "payout:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("payout", flag.ContinueOnError)
	path := fs.String("f", "", `workspace file, "-" for stdin`)
	input := fs.String("input", "", "input format: json or yaml (default from extension)")
	format := fs.String("format", "table", "output format: table or json")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-f is required")
	}

	logger := logging.Setup(*logLevel)

	data, err := readInput(*path, stdin)
	if err != nil {
		return err
	}

	inFormat := factory.Format(*input)
	if inFormat == "" {
		inFormat = factory.FormatFromPath(*path)
	}

	ws, err := factory.NewWorkspaceFactory().Parse(data, inFormat)
	if err != nil {
		return err
	}
	logger.Debug("workspace parsed", "profiles", len(ws.Profiles), "persons", len(ws.Persons))

	report := payout.BuildReport(ws.Persons, ws.Profiles)

	switch *format {
	case "table":
		return renderTable(stdout, report)
	case "json":
		return renderJSON(stdout, report)
	default:
		return fmt.Errorf("unknown output format %q", *format)
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	return data, nil
}
