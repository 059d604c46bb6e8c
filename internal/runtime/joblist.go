package runtime

import (
	"fmt"

	"github.com/ahcal-reco/ahcal-reco/internal/config"
)

// RunJobList drives one pipeline run per job-list line (spec §6),
// rewriting run.input/run.output per entry and reusing the same
// parsed algorithm/reader configuration for every file — the
// file-sharded parallelism spec §5 permits, run sequentially here
// since a single process instance is what this CLI starts (one
// runtime instance per file, per spec, is left to the operator
// spawning one process per job-list shard; this entry point runs a
// shard in-process, one file at a time).
func RunJobList(cfg *config.Config, jobListPath string) ([]Summary, error) {
	entries, err := config.LoadJobList(jobListPath)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		output := config.OutputName(cfg.Run.Output, e)
		summary, err := Run(cfg, e.Filename, output)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, fmt.Errorf("runtime: job %q (run %d, pool %d): %w", e.Filename, e.RunNumber, e.PoolIndex, err)
		}
	}
	return summaries, nil
}
