// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ahcalreco runs the AHCAL event-reconstruction pipeline (spec
// §6 CLI): `ahcalreco <config.yaml> [-i <job-list.txt>]`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/ahcal-reco/ahcal-reco/internal/config"
	"github.com/ahcal-reco/ahcal-reco/internal/metrics"
	"github.com/ahcal-reco/ahcal-reco/internal/runtime"
	"github.com/ahcal-reco/ahcal-reco/pkg/rlog"

	// Blank-imported for their self-registering init(), the same way
	// cmd/cc-backend/main.go blank-imports its sql drivers: these
	// packages are never referenced by name here, only reached through
	// the algorithm registry by the type name their init() registers.
	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/adctoenergy"
	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/iowriter"
	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/linearfit"
	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/muonkf"
	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/pedestal"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is factored out of main so the exit code (spec §6: "0 success, 1
// usage error, non-zero on fatal I/O or unknown algorithm") can be
// asserted without os.Exit tearing down the test process.
func run(args []string) int {
	fs := flag.NewFlagSet("ahcalreco", flag.ContinueOnError)
	jobList := fs.String("i", "", "job-list file: one \"filename runNumber poolIndex\" line per input")
	gops := fs.Bool("gops", false, "listen via github.com/google/gops/agent (for debugging)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: ahcalreco <config.yaml> [-i <job-list.txt>]")
		return 1
	}
	configPath := fs.Arg(0)
	// Flags may also follow the config path.
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return 1
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "usage: ahcalreco <config.yaml> [-i <job-list.txt>]")
		return 1
	}

	if *gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			fmt.Fprintf(os.Stderr, "gops/agent.Listen failed: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ahcalreco: %v\n", err)
		return 1
	}

	if err := rlog.Init(cfg.Run.LogFile, cfg.Run.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "ahcalreco: %v\n", err)
		return 1
	}

	var metricsServer *metrics.Server
	if cfg.Run.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.Run.MetricsAddr)
		metricsServer.Start()
		defer metricsServer.Stop(context.Background())
	}

	var summaries []runtime.Summary
	if *jobList != "" {
		summaries, err = runtime.RunJobList(cfg, *jobList)
	} else {
		var summary runtime.Summary
		summary, err = runtime.Run(cfg, "", "")
		summaries = []runtime.Summary{summary}
	}

	fmt.Println(runtime.RenderSummary(summaries))
	if err != nil {
		rlog.Errorf("ahcalreco: %v", err)
		return 2
	}
	return 0
}
