package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Sweeper evicts expired rows from the working set store in batches.
// Expiration itself is lazy, reads filter expired rows out, the sweeper
// only reclaims the space behind them.
type Sweeper struct {
	store    *database.Store
	config   *model.RecallerConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a new sweeper over the working set store.
func NewSweeper(store *database.Store, config *model.RecallerConfig, logger *slog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, helper.NewError("store validation", fmt.Errorf("sweeper needs a store"))
	}
	if config == nil {
		config = model.DefaultRecallerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:  store,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// SweepOnce runs one eviction pass, relations first, nodes second. Each
// phase deletes at most batchSize rows. Rows with expiration 0 are
// permanent and never touched.
func (s *Sweeper) SweepOnce(ctx context.Context, nowMillis int64, batchSize int) (int, int, error) {
	if batchSize < 1 {
		return 0, 0, helper.NewCodeError("batch size validation", helper.CodeInvalidInput, fmt.Errorf("batch size must be positive, got %v", batchSize))
	}

	relations, err := s.store.Maintenance.EvictExpiredRelations(ctx, nowMillis, batchSize)
	if err != nil {
		return 0, 0, helper.NewCodeError("evict expired relations", helper.CodeStoreUnavailable, err)
	}

	nodes, err := s.store.Maintenance.EvictExpiredNodes(ctx, nowMillis, batchSize)
	if err != nil {
		return relations, 0, helper.NewCodeError("evict expired nodes", helper.CodeStoreUnavailable, err)
	}

	if relations > 0 || nodes > 0 {
		s.logger.Debug("Evicted expired rows", slog.Int("relations", relations), slog.Int("nodes", nodes))
	}

	return relations, nodes, nil
}

// RunToCompletion sweeps until one pass evicts nothing and returns the
// totals. Safe to rerun, a timed out run resumes where it stopped.
func (s *Sweeper) RunToCompletion(ctx context.Context, nowMillis int64, batchSize int) (int, int, error) {
	totalRelations := 0
	totalNodes := 0

	for {
		select {
		case <-ctx.Done():
			return totalRelations, totalNodes, helper.NewError("sweep to completion", ctx.Err())
		default:
		}

		relations, nodes, err := s.SweepOnce(ctx, nowMillis, batchSize)
		totalRelations += relations
		totalNodes += nodes
		if err != nil {
			return totalRelations, totalNodes, err
		}
		if relations == 0 && nodes == 0 {
			return totalRelations, totalNodes, nil
		}
	}
}

// Start runs a full sweep now and then on every SweepInterval tick.
// An interval of 0 disables the timer.
func (s *Sweeper) Start() {
	if s.config.SweepInterval <= 0 {
		s.logger.Debug("Sweeper timer disabled")
		return
	}

	s.sweepInBackground()

	go func() {
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweepInBackground()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the sweep timer.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Sweeper) sweepInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	relations, nodes, err := s.RunToCompletion(ctx, helper.NowMillis(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("Sweep failed", slog.Any("error", err))
		return
	}
	if relations > 0 || nodes > 0 {
		s.logger.Info("Sweep finished", slog.Int("relations", relations), slog.Int("nodes", nodes))
	}
}
