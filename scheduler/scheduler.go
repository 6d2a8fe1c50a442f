package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"condocore/config"
	"condocore/dupes"
	"condocore/lifecycle"
	"condocore/scraper"
	"condocore/storage"
	"condocore/store"
)

// Scheduler drives the scraper on a cron/interval schedule, relays
// operator commands from SQLite, and runs the lifecycle and
// duplicate-detection sweeps that keep the entity store current between
// resolves.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	bookkeeping  *storage.SQLiteStore
	entities     store.Store
	lifecycle    *lifecycle.Engine
	minSimilarity float64

	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, bookkeeping *storage.SQLiteStore, entities store.Store, lc *lifecycle.Engine) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		orchestrator:  orchestrator,
		bookkeeping:   bookkeeping,
		entities:      entities,
		lifecycle:     lc,
		minSimilarity: cfg.Core.DuplicateMinSimilarity,
		cron:          cron.New(),
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)
	go s.pollResumes(ctx)
	go s.pollLifecycleSweep(ctx)
	go s.pollDuplicateSweep(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.bookkeeping.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.orchestrator.HandleCommand(&cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.bookkeeping.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}

const resumeDelay = 15 * time.Minute

func (s *Scheduler) pollResumes(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sites, err := s.bookkeeping.GetSitesWithResumePage()
			if err != nil {
				log.Printf("Error checking resume pages: %v", err)
				continue
			}

			for _, siteID := range sites {
				lastRun, err := s.bookkeeping.GetLastRunTime(siteID)
				if err != nil {
					log.Printf("Error getting last run time for %s: %v", siteID, err)
					continue
				}

				if time.Since(lastRun) >= resumeDelay {
					log.Printf("Resuming scrape for %s", siteID)
					if err := s.orchestrator.RunSite(ctx, siteID); err != nil {
						log.Printf("Resume error for %s: %v", siteID, err)
					}
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

const lifecycleSweepInterval = 10 * time.Minute
const lifecycleSweepBatch = 200

// pollLifecycleSweep periodically transitions stalled listings to
// inactive per spec.md §4.5, independently of the per-resolve Reconfirm
// path (which only fires on listings actually re-sighted).
func (s *Scheduler) pollLifecycleSweep(ctx context.Context) {
	ticker := time.NewTicker(lifecycleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.lifecycle.SweepStaleListings(ctx, time.Now(), lifecycleSweepBatch)
			if err != nil {
				log.Printf("Lifecycle sweep error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Lifecycle sweep: %d listings marked inactive", n)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

const duplicateSweepInterval = 30 * time.Minute

// pollDuplicateSweep runs the duplicate finder and logs candidate groups
// for operator review — merging itself is a deliberate, operator-invoked
// step (the merge operator, not this sweep, rewrites the graph).
func (s *Scheduler) pollDuplicateSweep(ctx context.Context) {
	ticker := time.NewTicker(duplicateSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			groups, err := dupes.FindBuildingDuplicates(ctx, s.entities, s.minSimilarity)
			if err != nil {
				log.Printf("Duplicate sweep error: %v", err)
				continue
			}
			if len(groups) > 0 {
				log.Printf("Duplicate sweep: %d building duplicate groups found", len(groups))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
