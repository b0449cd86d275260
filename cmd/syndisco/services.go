package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dimits-ts/syndisco/pkg/api"
	"github.com/dimits-ts/syndisco/pkg/index"
	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/pkg/metrics"
	"github.com/dimits-ts/syndisco/pkg/spinner"
	"github.com/dimits-ts/syndisco/yarn"
)

const shutdownTimeout = 5 * time.Second

// services are the sinks a batch reports to besides its record store.
type services struct {
	metrics *metrics.Collector
	index   *index.Index
	server  *api.Server
	logger  *zap.Logger
}

// openServices opens the run index when enabled and, with serve set, starts
// the live server over the output directories.
func (a *app) openServices(ctx context.Context, serve bool, addr string) (*services, error) {
	s := &services{
		metrics: metrics.NewCollector(metrics.DefaultNamespace, a.logger),
		logger:  a.logger,
	}
	if a.cfg.Index.Enabled {
		idx, err := index.Open(ctx, a.cfg.Index.Path)
		if err != nil {
			return nil, err
		}
		s.index = idx
	}
	if !serve {
		return s, nil
	}

	sc := a.cfg.Server
	if addr != "" {
		sc.Addr = addr
	}
	s.server = api.NewServer(api.Options{
		Config:      sc,
		Discussions: yarn.NewFileStore(a.cfg.Discussions.OutputDir),
		Annotations: yarn.NewFileStore(a.cfg.Annotations.OutputDir),
		Index:       s.index,
		Metrics:     s.metrics,
		Version:     version,
		Logger:      a.logger,
	})
	if err := s.server.Start(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// observer fans job events out to every open sink.
func (s *services) observer() job.Observer {
	obs := job.Observers{s.metrics}
	if s.index != nil {
		obs = append(obs, index.NewRecorder(s.index, s.logger))
	}
	if s.server != nil {
		obs = append(obs, api.NewHubObserver(s.server.Hub()))
	}
	return obs
}

func (s *services) close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("server shutdown failed", zap.Error(err))
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Warn("failed to close run index", zap.Error(err))
		}
	}
}

// newProgress returns a batch counter on w.
func newProgress(w io.Writer, what string, total int) *spinner.Progress {
	cfg := spinner.DefaultConfig()
	cfg.Writer = w
	return spinner.NewProgress(what, total, cfg)
}

func printServing(w io.Writer, s *api.Server) {
	fmt.Fprintf(w, "Serving on http://%s (events at ws://%s/ws)\n", s.Addr(), s.Addr())
}
