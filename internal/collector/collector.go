// Package collector orchestrates one incremental collection run per call:
// fetch, filter against the stored watermark, deduplicate and persist.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmpark/stocknews-collector/internal/metrics"
	"github.com/jmpark/stocknews-collector/internal/news"
)

// Section is one topical bucket and its keyword queries, in run order.
type Section struct {
	Name     string
	Keywords []string
}

// Config controls filtering, pacing and the optional side channels.
type Config struct {
	Sections        []Section
	ExcludeKeywords []string
	KeywordDelay    time.Duration
	ArchivePrefix   string
	Topic           string
}

// Collector runs collection cycles. Runs are serialized; a scheduled fire
// and a manual trigger never interleave.
type Collector struct {
	search    news.SearchClient
	store     news.ArticleStore
	blobs     news.BlobStore
	publisher news.Publisher
	hasher    news.Hasher
	clock     news.Clock
	idGen     news.IDGenerator
	cfg       Config
	logger    *zap.Logger

	runMu sync.Mutex
}

// Option configures optional collaborators.
type Option func(*Collector)

// WithBlobStore enables raw payload archiving.
func WithBlobStore(blobs news.BlobStore) Option {
	return func(c *Collector) { c.blobs = blobs }
}

// WithPublisher enables run summary notifications.
func WithPublisher(pub news.Publisher) Option {
	return func(c *Collector) { c.publisher = pub }
}

// New creates a Collector. A nil logger falls back to a no-op.
func New(
	search news.SearchClient,
	store news.ArticleStore,
	hasher news.Hasher,
	clock news.Clock,
	idGen news.IDGenerator,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		search: search,
		store:  store,
		hasher: hasher,
		clock:  clock,
		idGen:  idGen,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one collection cycle for the calendar day of target (KST).
// It returns a summary regardless of outcome; a non-nil error means the run
// could not establish its watermark and nothing was collected.
func (c *Collector) Run(ctx context.Context, target time.Time) (news.Summary, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	runID, err := c.idGen.NewID()
	if err != nil {
		return news.Summary{}, fmt.Errorf("generate run id: %w", err)
	}

	local := target.In(news.KST)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, news.KST)

	summary := news.Summary{
		RunID:      runID,
		TargetDate: day,
		StartedAt:  c.clock.Now(),
	}

	watermark, err := c.store.MaxPublishTime(ctx, day)
	if err != nil {
		return c.failRun(ctx, summary, fmt.Errorf("load watermark: %w", err))
	}

	cutoff, err := cutoffTime(day, watermark)
	if err != nil {
		return c.failRun(ctx, summary, err)
	}

	c.logger.Info("collection run started",
		zap.String("run_id", runID),
		zap.String("date", day.Format("2006-01-02")),
		zap.String("watermark", watermark))

	for si, section := range c.cfg.Sections {
		result := c.collectSection(ctx, runID, si, section, day, cutoff)
		summary.Sections = append(summary.Sections, result)
		summary.Total += result.Inserted
	}

	summary.FinishedAt = c.clock.Now()
	status := summary.Status()
	metrics.ObserveRun(string(status))

	c.logger.Info("collection run finished",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("total", summary.Total),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	c.publishSummary(ctx, summary)
	return summary, nil
}

// failRun closes out a run that never reached its sections. The error
// summary is still published: every finished run emits an event.
func (c *Collector) failRun(ctx context.Context, summary news.Summary, err error) (news.Summary, error) {
	summary.Error = err.Error()
	summary.FinishedAt = c.clock.Now()
	metrics.ObserveRun(string(news.RunError))
	c.publishSummary(ctx, summary)
	return summary, err
}

func (c *Collector) collectSection(
	ctx context.Context,
	runID string,
	sectionIdx int,
	section Section,
	day time.Time,
	cutoff time.Time,
) news.SectionResult {
	result := news.SectionResult{Section: section.Name}

	var articles []news.Article
	for ki, keyword := range section.Keywords {
		if ki > 0 && c.cfg.KeywordDelay > 0 {
			select {
			case <-time.After(c.cfg.KeywordDelay):
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				return result
			}
		}

		items, err := c.search.FetchAll(ctx, keyword)
		if err != nil {
			if !errors.Is(err, news.ErrRateLimitExhausted) {
				result.Error = err.Error()
				return result
			}
			// Keep whatever pages came back before the limiter gave up.
			c.logger.Warn("rate limit exhausted, keeping partial results",
				zap.String("run_id", runID),
				zap.String("section", section.Name),
				zap.String("keyword", keyword),
				zap.Int("items", len(items)))
		}
		if len(items) == 0 {
			continue
		}

		c.archiveItems(ctx, runID, sectionIdx, ki, items)
		articles = append(articles, c.filterItems(items, section.Name, keyword, day, cutoff)...)
	}

	articles = news.DedupByTitle(articles)
	if len(articles) == 0 {
		return result
	}

	if err := c.store.InsertArticles(ctx, articles); err != nil {
		c.logger.Error("section persistence failed",
			zap.String("run_id", runID),
			zap.String("section", section.Name),
			zap.Error(err))
		result.Error = err.Error()
		return result
	}

	result.Inserted = len(articles)
	metrics.ObserveArticles(section.Name, result.Inserted)
	return result
}

// filterItems keeps items published on day and strictly after cutoff, with
// cleaned titles and none of the excluded markers.
func (c *Collector) filterItems(
	items []news.RawItem,
	section, keyword string,
	day, cutoff time.Time,
) []news.Article {
	var out []news.Article
	for _, item := range items {
		title := news.CleanTitle(item.Title)
		if title == "" || news.ContainsExcluded(title, c.cfg.ExcludeKeywords) {
			continue
		}

		published, err := news.ParsePubDate(item.PubDate)
		if err != nil {
			c.logger.Warn("unparseable publish date, skipping item",
				zap.String("pub_date", item.PubDate),
				zap.String("title", title))
			continue
		}

		if !sameDay(published, day) || !published.After(cutoff) {
			continue
		}

		out = append(out, news.Article{
			Title:       title,
			Link:        item.Link,
			Section:     section,
			Keyword:     keyword,
			PublishedAt: published,
		})
	}
	return out
}

// archiveItems writes the raw keyword payload to the blob store. Archive
// failures never fail the run.
func (c *Collector) archiveItems(ctx context.Context, runID string, sectionIdx, keywordIdx int, items []news.RawItem) {
	if c.blobs == nil {
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("marshal raw payload failed", zap.Error(err))
		return
	}
	digest, err := c.hasher.Hash(data)
	if err != nil {
		c.logger.Warn("hash raw payload failed", zap.Error(err))
		return
	}

	path := fmt.Sprintf("%s/%s/%02d-%02d-%s.json", c.cfg.ArchivePrefix, runID, sectionIdx, keywordIdx, digest[:16])
	uri, err := c.blobs.PutObject(ctx, path, "application/json", data)
	if err != nil {
		c.logger.Warn("archive raw payload failed",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	c.logger.Debug("archived raw payload", zap.String("uri", uri))
}

// publishSummary emits the run summary. Publish failures never fail the run.
func (c *Collector) publishSummary(ctx context.Context, summary news.Summary) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	id, err := c.publisher.Publish(ctx, c.cfg.Topic, summary)
	if err != nil {
		c.logger.Warn("publish run summary failed",
			zap.String("run_id", summary.RunID),
			zap.Error(err))
		return
	}
	c.logger.Debug("published run summary",
		zap.String("run_id", summary.RunID),
		zap.String("message_id", id))
}

// cutoffTime combines day with a "HH:MM:SS" watermark in KST.
func cutoffTime(day time.Time, watermark string) (time.Time, error) {
	t, err := time.Parse("15:04:05", watermark)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", watermark, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, news.KST), nil
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.In(news.KST).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
