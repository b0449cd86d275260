// Syndisco generates synthetic online discussions between LLM-driven
// personas and annotates them with LLM annotators.
//
// Components:
//   - wool: personas and actor definitions
//   - yarn: discussion and annotation records and their storage
//   - pkg/job: the discussion and annotation loops
//   - pkg/experiment: batches of jobs
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

const version = "0.4.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		derrors.Display(err)
		stop()
		os.Exit(1)
	}
}
