package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"condocore/config"
	"condocore/models"
	"condocore/resolve"
	"condocore/storage"
)

// Orchestrator fans out across configured sites, drives each Handler's
// RawListings through the resolve.Engine, and records run/log bookkeeping
// in SQLite. It carries no entity-store writes of its own — Resolve owns
// the single Tx per listing.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	resolver *resolve.Engine
	handlers map[string]Handler
	paused   bool
}

// NewOrchestrator wires a bookkeeping store, resolve engine, and the
// per-site Handlers the caller has already constructed (each backed by a
// real Fetcher/Parser pair — this package never builds one itself).
func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, resolver *resolve.Engine, handlers map[string]Handler) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		handlers: handlers,
	}
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	for siteID := range o.cfg.Sites {
		if err := o.RunSite(ctx, siteID); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
		}
	}

	return nil
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	handler, ok := o.handlers[siteID]
	if !ok {
		return fmt.Errorf("no handler registered for site: %s", siteID)
	}

	run := &models.ScrapeRun{
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", siteCfg.Name), siteID)

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		o.store.UpdateRun(run)
		o.store.UpdateSiteStats(siteID)
	}()

	for regionID, region := range siteCfg.Regions {
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Scraping region: %s", regionID), siteID)

		listings, err := handler.Scrape(ctx, region)
		if err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scrape error for %s: %v", regionID, err), siteID)
			run.ErrorsCount++
			run.Status = models.RunStatusFailed
			return err
		}

		run.ListingsFound += len(listings)
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Region %s: %d listings", regionID, len(listings)), siteID)

		for i := range listings {
			if err := o.processListing(ctx, run, &listings[i], siteID); err != nil {
				o.log(run.ID, models.LogLevelError,
					fmt.Sprintf("Process error for %s/%s: %v", siteID, listings[i].SitePropertyID, err), siteID)
				run.ErrorsCount++
			}
		}
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d found, %d new, %d relisted", run.ListingsFound, run.ListingsNew, run.PropertiesRelisted), siteID)

	return nil
}

func (o *Orchestrator) processListing(ctx context.Context, run *models.ScrapeRun, raw *models.RawListing, siteID string) error {
	result, err := o.resolver.Resolve(ctx, raw)
	if err != nil {
		return err
	}

	if result.CreatedProperty {
		run.PropertiesNew++
	}
	if result.Reattached {
		run.PropertiesRelisted++
	}
	run.ListingsNew++
	return nil
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSite:
		if params.Site != "" {
			return o.RunSite(ctx, params.Site)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Scraper resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	o.store.Log(&runID, level, message, siteID)
}

func (o *Orchestrator) GetSiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	status := map[string]interface{}{
		"paused": o.paused,
		"sites":  o.GetSiteIDs(),
	}
	return json.Marshal(status)
}
