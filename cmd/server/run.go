package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/Harshitk-cp/bdi/internal/config"
	"github.com/spf13/cobra"
)

var (
	runCycles  int
	runProgram string
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fixed number of cycles offline and print plan statistics",
	Example: `  server run --cycles 5
  server run -p examples/thermostat.yaml --json`,
	RunE: runOffline,
}

type agentReport struct {
	ID      string                `json:"id"`
	Cycles  uint64                `json:"cycles"`
	Beliefs []string              `json:"beliefs"`
	Plans   []agent.PlanStatistic `json:"plans"`
}

func runOffline(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	path := runProgram
	if path == "" {
		path = config.ProgramPath()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, path, logger)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.runner.Run(ctx, runCycles); err != nil {
		return err
	}

	return writeReports(cmd.OutOrStdout(), reportAgents(s.runner.Agents()), runJSON)
}

func reportAgents(agents []*agent.Agent) []agentReport {
	reports := make([]agentReport, 0, len(agents))
	for _, a := range agents {
		r := agentReport{ID: a.ID(), Cycles: a.Cycles(), Beliefs: []string{}, Plans: a.Plans()}
		for _, l := range a.Beliefs().Stream() {
			r.Beliefs = append(r.Beliefs, l.String())
		}
		reports = append(reports, r)
	}
	return reports
}

func writeReports(out io.Writer, reports []agentReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range reports {
		fmt.Fprintf(w, "agent %s\tcycles %d\tbeliefs %d\n", r.ID, r.Cycles, len(r.Beliefs))
		fmt.Fprintln(w, "  PLAN\tRUNS\tFAILS\tSTATE")
		for _, p := range r.Plans {
			fmt.Fprintf(w, "  %s\t%d\t%d\t%s\n", p.Plan, p.Runs, p.Fails, p.State)
		}
		for _, b := range r.Beliefs {
			fmt.Fprintf(w, "  %s\n", b)
		}
	}
	return w.Flush()
}
