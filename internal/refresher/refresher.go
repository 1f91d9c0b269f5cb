// Package refresher runs the single background loop that keeps tallies, downloaded
// testimony, and the merged artifacts fresh.
package refresher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/listing"
	"github.com/JakeFAU/testimony-tracker/internal/merge"
	"github.com/JakeFAU/testimony-tracker/internal/metrics"
	"github.com/JakeFAU/testimony-tracker/internal/names"
	"github.com/JakeFAU/testimony-tracker/internal/storage/local"
	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

// Task names used in logs and metrics.
const (
	TaskUpdate     = "update"
	TaskPrune      = "prune"
	TaskRegenerate = "regenerate"
)

// Config controls Refresher behavior.
type Config struct {
	Bill              string
	Session           string
	ListingURL        string
	CompareURL        string
	DocumentURLPrefix string
	MergedPDFPath     string
	MergedTextPath    string
	MissingNamesPath  string
	Topic             string
	Names             names.Options

	Tick            time.Duration
	UpdateEvery     time.Duration
	PruneEvery      time.Duration
	RegenerateEvery time.Duration
	PruneGrace      time.Duration
}

// Store is the testimony directory as seen by the refresher.
type Store interface {
	merge.TextSource
	PDFPath(id testimony.DocumentID) string
	HasText(id testimony.DocumentID) bool
	ValidPDFs() ([]testimony.DocumentID, error)
	Prune(now time.Time, grace time.Duration) ([]string, error)
}

// Downloader fetches documents that are not stored yet.
type Downloader interface {
	testimony.Downloader
	MissingIDs(ids []testimony.DocumentID) []testimony.DocumentID
}

// Refresher owns the refresh state. Tasks are serialized; Snapshot may be read from any
// goroutine.
type Refresher struct {
	cfg        Config
	fetcher    testimony.Fetcher
	downloader Downloader
	store      Store
	merger     testimony.Merger
	extractor  testimony.TextExtractor
	publisher  testimony.Publisher
	clock      testimony.Clock
	logger     *zap.Logger

	snapshot atomic.Pointer[testimony.Snapshot]

	mu         sync.Mutex
	lastUpdate time.Time
	lastPrune  time.Time
	lastRegen  time.Time
}

// New constructs a Refresher. publisher may be nil.
func New(
	cfg Config,
	fetcher testimony.Fetcher,
	downloader Downloader,
	store Store,
	merger testimony.Merger,
	extractor testimony.TextExtractor,
	publisher testimony.Publisher,
	clock testimony.Clock,
	logger *zap.Logger,
) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 500 * time.Millisecond
	}
	return &Refresher{
		cfg:        cfg,
		fetcher:    fetcher,
		downloader: downloader,
		store:      store,
		merger:     merger,
		extractor:  extractor,
		publisher:  publisher,
		clock:      clock,
		logger:     logger,
	}
}

// Snapshot returns the last-known-good state, or nil before the first successful update.
func (r *Refresher) Snapshot() *testimony.Snapshot {
	return r.snapshot.Load()
}

// Startup performs the initial update and, when the merged artifacts are missing,
// prunes and regenerates them before the loop starts.
func (r *Refresher) Startup(ctx context.Context) {
	r.logger.Info("performing initial update")
	r.runTask(ctx, TaskUpdate, r.update)
	if r.artifactsExist() {
		return
	}
	r.logger.Info("merged artifacts missing, pruning and regenerating")
	r.runTask(ctx, TaskPrune, r.prune)
	r.runTask(ctx, TaskRegenerate, r.regenerate)
}

// Run blocks, ticking until the context finishes.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()
	r.logger.Info("refresh loop started",
		zap.Duration("tick", r.cfg.Tick),
		zap.Duration("update_every", r.cfg.UpdateEvery),
		zap.Duration("prune_every", r.cfg.PruneEvery),
		zap.Duration("regenerate_every", r.cfg.RegenerateEvery),
	)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			r.safeTick(ctx)
		}
	}
}

func (r *Refresher) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("refresh tick panicked", zap.Any("panic", rec), zap.Stack("stack"))
		}
	}()
	r.Tick(ctx)
}

// Tick runs every task whose cadence has elapsed. Task errors are logged, not returned.
func (r *Refresher) Tick(ctx context.Context) {
	if r.stale(&r.lastUpdate, r.cfg.UpdateEvery) {
		r.runTask(ctx, TaskUpdate, r.update)
	}
	if r.stale(&r.lastPrune, r.cfg.PruneEvery) {
		r.runTask(ctx, TaskPrune, r.prune)
	}
	if r.stale(&r.lastRegen, r.cfg.RegenerateEvery) {
		r.runTask(ctx, TaskRegenerate, r.regenerate)
	}
}

// Update recounts the listing page.
func (r *Refresher) Update(ctx context.Context) error {
	return r.locked(ctx, r.update)
}

// Prune removes invalid testimony files older than the grace period.
func (r *Refresher) Prune(ctx context.Context) error {
	return r.locked(ctx, r.prune)
}

// Regenerate downloads new testimony and rebuilds the merged artifacts.
func (r *Refresher) Regenerate(ctx context.Context) error {
	return r.locked(ctx, r.regenerate)
}

func (r *Refresher) stale(last *time.Time, every time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.Now().Sub(*last) > every
}

func (r *Refresher) locked(ctx context.Context, fn func(context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

func (r *Refresher) runTask(ctx context.Context, name string, fn func(context.Context) error) {
	start := time.Now()
	err := r.guarded(ctx, name, fn)
	metrics.ObserveRefresh(name, err, time.Since(start))
	if err != nil {
		r.logger.Error("refresh task failed", zap.String("task", name), zap.Error(err))
		return
	}
	r.logger.Debug("refresh task finished", zap.String("task", name), zap.Duration("duration", time.Since(start)))
}

// guarded turns a panicking task into an error so Startup survives it the way the loop does.
func (r *Refresher) guarded(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("refresh task panicked", zap.String("task", name), zap.Any("panic", rec), zap.Stack("stack"))
			err = fmt.Errorf("%s panicked: %v", name, rec)
		}
	}()
	return r.locked(ctx, fn)
}

func (r *Refresher) update(ctx context.Context) error {
	// Stamped up front so a failing source is retried on cadence, not every tick.
	r.lastUpdate = r.clock.Now()

	page, err := r.fetcher.Fetch(ctx, r.cfg.ListingURL)
	if err != nil {
		return fmt.Errorf("fetch listing: %w", err)
	}
	results := listing.Count(page.Body, r.cfg.Session)
	prev := r.snapshot.Load()

	next := testimony.Snapshot{
		Results:        results,
		UpdatedAt:      r.clock.Now(),
		MissingEnabled: r.cfg.CompareURL != "",
	}
	if prev != nil {
		next.MissingCount = prev.MissingCount
	}
	if next.MissingEnabled {
		count, err := r.updateMissing(ctx, page.Body)
		if err != nil {
			r.logger.Warn("missing-name refresh failed", zap.Error(err))
		} else {
			next.MissingCount = count
		}
	}

	if prev == nil || prev.Results.Total != results.Total {
		r.lastRegen = time.Time{}
		r.notify(ctx, prev, results)
	}
	r.snapshot.Store(&next)
	metrics.ObserveResults(results.Total, results.Support, results.Oppose, results.Unknown)
	r.logger.Info("testimony counted",
		zap.Int("total", results.Total),
		zap.Int("support", results.Support),
		zap.Int("oppose", results.Oppose),
		zap.Int("unknown", results.Unknown),
	)
	return nil
}

func (r *Refresher) updateMissing(ctx context.Context, current []byte) (int, error) {
	comparePage, err := r.fetcher.Fetch(ctx, r.cfg.CompareURL)
	if err != nil {
		return 0, fmt.Errorf("fetch comparison listing: %w", err)
	}
	missing := names.Missing(listing.Supporters(comparePage.Body), listing.Supporters(current), r.cfg.Names)
	body := strings.Join(missing, "\n")
	if err := local.WriteFileAtomic(r.cfg.MissingNamesPath, strings.NewReader(body)); err != nil {
		return 0, fmt.Errorf("write missing names: %w", err)
	}
	metrics.ObserveMissingNames(len(missing))
	return len(missing), nil
}

func (r *Refresher) notify(ctx context.Context, prev *testimony.Snapshot, results testimony.Results) {
	if r.publisher == nil {
		return
	}
	event := testimony.ResultsChanged{Bill: r.cfg.Bill, Results: results, At: r.clock.Now()}
	if prev != nil {
		previous := prev.Results
		event.Previous = &previous
	}
	id, err := r.publisher.Publish(ctx, r.cfg.Topic, event)
	if err != nil {
		r.logger.Warn("publish results failed", zap.Error(err))
		return
	}
	r.logger.Debug("published results", zap.String("message_id", id))
}

func (r *Refresher) prune(_ context.Context) error {
	now := r.clock.Now()
	r.lastPrune = now
	removed, err := r.store.Prune(now, r.cfg.PruneGrace)
	for _, path := range removed {
		r.logger.Info("unlinked bad testimony file", zap.String("path", path))
	}
	metrics.ObservePruned(len(removed))
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return nil
}

func (r *Refresher) regenerate(ctx context.Context) error {
	r.lastRegen = r.clock.Now()

	page, err := r.fetcher.Fetch(ctx, r.cfg.ListingURL)
	if err != nil {
		return fmt.Errorf("fetch listing: %w", err)
	}

	var errs []error
	downloaded := 0
	for _, id := range r.downloader.MissingIDs(listing.DocumentIDs(page.Body)) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("regenerate canceled: %w", err)
		}
		if err := r.downloader.Download(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		downloaded++
	}
	if downloaded == 0 && r.artifactsExist() {
		return errors.Join(errs...)
	}

	if err := r.rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Refresher) rebuild(ctx context.Context) error {
	valid, err := r.store.ValidPDFs()
	if err != nil {
		return fmt.Errorf("list valid pdfs: %w", err)
	}

	var errs []error
	paths := make([]string, 0, len(valid))
	for _, id := range valid {
		paths = append(paths, r.store.PDFPath(id))
	}
	if len(paths) > 0 {
		if err := r.merger.Merge(ctx, paths, r.cfg.MergedPDFPath); err != nil {
			errs = append(errs, err)
		}
	}

	for _, id := range valid {
		if r.store.HasText(id) {
			continue
		}
		r.logger.Debug("extracting text", zap.String("id", string(id)))
		if err := r.extractor.Extract(ctx, r.store.PDFPath(id), r.store.TextPath(id)); err != nil {
			errs = append(errs, err)
		}
	}

	text, err := merge.BuildText(r.store, r.cfg.DocumentURLPrefix)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if err := local.WriteFileAtomic(r.cfg.MergedTextPath, bytes.NewReader(text)); err != nil {
		errs = append(errs, fmt.Errorf("write merged text: %w", err))
	}
	r.logger.Info("merged testimony regenerated", zap.Int("documents", len(valid)))
	return errors.Join(errs...)
}

func (r *Refresher) artifactsExist() bool {
	return local.FileExists(r.cfg.MergedPDFPath) && local.FileExists(r.cfg.MergedTextPath)
}
