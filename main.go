package main

import (
	"context"
	"log"

	"github.com/BTreeMap/SleepEMA/internal/config"
	"github.com/BTreeMap/SleepEMA/internal/pipeline"
)

func main() {
	// Minimal offline example: run the pipeline against the bundled sample
	// data with placeholder credentials (forces dry-run).
	cfg := config.Skeleton()

	runner := pipeline.NewRunner(cfg, pipeline.WithDryRun(true))
	results := runner.RunOnce(context.Background())

	for _, res := range results {
		if res.Err != nil {
			log.Printf("%s: %v", res.PatientID, res.Err)
			continue
		}
		log.Printf("%s: triggered=%v dry_run=%v", res.PatientID, res.Outcome.Decision.Triggered, res.Outcome.DryRun)
	}
}
