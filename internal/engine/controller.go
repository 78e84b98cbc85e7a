package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/creative"
	"github.com/supercrema/adforge/pkg/diag"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/importer"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/metrics"
	"github.com/supercrema/adforge/pkg/platform/core"
	"github.com/supercrema/adforge/pkg/template"
)

// Controller runs upload jobs against one network adapter. Jobs execute
// on a bounded worker pool and are fully isolated: one job's failure
// never touches another's outcome.
type Controller struct {
	cfg      *config.BaseConfig
	adapter  core.Adapter
	importer *importer.Importer
	resolver *template.Resolver
	diag     *diag.Channel
	logger   *zap.Logger
}

// NewController wires a controller around an authenticated adapter.
func NewController(cfg *config.BaseConfig, adapter core.Adapter, imp *importer.Importer, resolver *template.Resolver, diagCh *diag.Channel) *Controller {
	return &Controller{
		cfg:      cfg,
		adapter:  adapter,
		importer: imp,
		resolver: resolver,
		diag:     diagCh,
		logger:   logger.With(zap.String("component", "controller"), zap.String("network", adapter.Network())),
	}
}

// Run executes every job and returns one report per job, in input
// order. Cancellation marks in-flight and not-yet-started jobs aborted.
func (c *Controller) Run(ctx context.Context, jobs []*Job) []Report {
	reports := make([]Report, len(jobs))

	queue := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < c.cfg.Performance.GetJobWorkers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				reports[idx] = c.runJob(ctx, jobs[idx])
			}
		}()
	}

	for idx := range jobs {
		queue <- idx
	}
	close(queue)
	wg.Wait()

	return reports
}

// runJob drives one job through the state machine. Every terminal path
// goes through finish so the metrics and diagnostics stay consistent.
func (c *Controller) runJob(ctx context.Context, job *Job) Report {
	network := c.adapter.Network()
	log := c.logger.With(zap.String("job_id", job.ID), zap.String("destination", job.Destination.ID))

	metrics.JobsActive.WithLabelValues(network).Inc()
	defer metrics.JobsActive.WithLabelValues(network).Dec()

	if err := job.transition(StatusValidating); err != nil {
		return c.fail(job, err)
	}

	// Mode gating happens before any work: a marketer-mode job asking
	// for structure creation is refused outright, not partially run.
	if job.Campaign != nil && !job.Mode.Allows(core.CapabilityCreateStructure) {
		return c.fail(job, errors.New(errors.ErrorTypeCapability,
			"campaign structure creation requires operator mode"))
	}

	// Import: folder locations expand into their video files first
	timer := metrics.NewTimer()
	locations, err := c.importer.Expand(ctx, job.Locations)
	if err != nil {
		if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
			return *aborted
		}
		return c.fail(job, err)
	}
	results := c.importer.Import(ctx, locations)
	metrics.StageDuration.WithLabelValues(network, "import").Observe(timer.Stop().Seconds())

	if failures := importer.Failures(results); len(failures) > 0 {
		if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
			return *aborted
		}
		return c.fail(job, errors.Wrap(failures[0].Err, errors.ErrorTypeFile,
			"asset import failed, job not submitted"))
	}
	if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
		return *aborted
	}

	// Validate
	timer = metrics.NewTimer()
	validated, err := creative.Validate(job.Format, importer.Assets(results), job.Texts, job.Naming)
	metrics.StageDuration.WithLabelValues(network, "validate").Observe(timer.Stop().Seconds())
	if err != nil {
		return c.fail(job, err)
	}

	// Resolve inherited defaults
	timer = metrics.NewTimer()
	texts, storeURL, err := c.resolveTexts(ctx, job, validated.Texts)
	metrics.StageDuration.WithLabelValues(network, "resolve").Observe(timer.Stop().Seconds())
	if err != nil {
		if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
			return *aborted
		}
		return c.fail(job, err)
	}

	// Upload
	if err := job.transition(StatusUploading); err != nil {
		return c.fail(job, err)
	}
	timer = metrics.NewTimer()
	err = c.uploadAll(ctx, validated.Units)
	metrics.StageDuration.WithLabelValues(network, "upload").Observe(timer.Stop().Seconds())
	if err != nil {
		if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
			return *aborted
		}
		// All-or-nothing: a single failed asset leaves nothing created.
		return c.fail(job, err)
	}
	if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
		return *aborted
	}

	// Create
	if err := job.transition(StatusCreating); err != nil {
		return c.fail(job, err)
	}
	timer = metrics.NewTimer()
	report, err := c.createAll(ctx, job, validated.Units, texts, storeURL)
	metrics.StageDuration.WithLabelValues(network, "create").Observe(timer.Stop().Seconds())
	if err != nil {
		if aborted := c.abortIfCanceled(ctx, job); aborted != nil {
			return *aborted
		}
		return c.fail(job, err)
	}

	if err := job.transition(StatusSucceeded); err != nil {
		return c.fail(job, err)
	}
	metrics.JobsTotal.WithLabelValues(network, string(StatusSucceeded)).Inc()
	log.Info("job succeeded",
		zap.Int("creatives", len(report.RemoteHandles)),
		zap.Bool("reused", report.Reused))

	report.JobID = job.ID
	report.Status = StatusSucceeded
	return report
}

// resolveTexts fills empty text settings from the destination's most
// recent active ad when inheritance is enabled, and applies the store
// URL precedence: destination over inherited over submitted.
func (c *Controller) resolveTexts(ctx context.Context, job *Job, texts creative.Texts) (creative.Texts, string, error) {
	storeURL := template.SanitizeStoreURL(texts.StoreURL)
	if job.Destination.StoreURL != "" {
		storeURL = template.SanitizeStoreURL(job.Destination.StoreURL)
	}

	if !job.InheritDefaults || job.Destination.ID == "" {
		return texts, storeURL, nil
	}

	defaults, err := c.resolver.Resolve(ctx, c.adapter, job.Network, job.Destination, job.Mode, job.ForceRefresh)
	if err != nil {
		// A destination with no active ads simply has nothing to
		// inherit; the submission's own texts carry the job.
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return texts, storeURL, nil
		}
		return texts, storeURL, err
	}

	if len(texts.PrimaryTexts) == 0 {
		texts.PrimaryTexts = defaults.PrimaryTexts
	}
	if len(texts.Headlines) == 0 {
		texts.Headlines = defaults.Headlines
	}
	if texts.CTA == "" {
		texts.CTA = defaults.CTA
	}
	if storeURL == "" {
		storeURL = defaults.StoreURL
	}

	return texts.Truncate(), storeURL, nil
}

// uploadAll pushes every distinct asset in the units through the
// adapter over a bounded pool. The first error wins; remaining uploads
// finish or fail on their own, but nothing downstream runs.
func (c *Controller) uploadAll(ctx context.Context, units []creative.Unit) error {
	var assets []*creative.MediaAsset
	seen := make(map[*creative.MediaAsset]bool)
	for _, u := range units {
		for _, a := range u.Group.Assets {
			if !seen[a] {
				seen[a] = true
				assets = append(assets, a)
			}
		}
	}

	workers := c.cfg.Performance.UploadWorkers
	if workers <= 0 {
		workers = 6
	}
	if workers > len(assets) {
		workers = len(assets)
	}

	queue := make(chan *creative.MediaAsset)
	errs := make(chan error, len(assets))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range queue {
				if asset.Uploaded() {
					continue
				}
				_, err := c.adapter.UploadVideo(ctx, core.UploadRequest{Asset: asset})
				errs <- err
			}
		}()
	}

	for _, asset := range assets {
		queue <- asset
	}
	close(queue)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// createAll turns the uploaded units into creatives attached to the
// destination. An existing creative with the same derived name is
// reused instead of duplicated, making resubmission idempotent.
func (c *Controller) createAll(ctx context.Context, job *Job, units []creative.Unit, texts creative.Texts, storeURL string) (Report, error) {
	var report Report

	dest := job.Destination
	if job.Campaign != nil {
		created, err := c.adapter.CreateCampaignStructure(ctx, *job.Campaign)
		if err != nil {
			return report, err
		}
		dest = created
		if job.Campaign.Paused {
			report.Warnings = append(report.Warnings,
				"campaign created paused; start it manually after review")
		}
	}

	for _, unit := range units {
		existing, err := c.adapter.FindCreativeByName(ctx, unit.Name)
		if err != nil {
			return report, err
		}
		if existing != nil {
			c.logger.Info("creative already exists, reusing",
				zap.String("job_id", job.ID),
				zap.String("name", unit.Name),
				zap.String("id", existing.ID))
			report.RemoteHandles = append(report.RemoteHandles,
				core.RemoteHandle{ID: existing.ID, Kind: "creative"})
			report.Reused = true
			continue
		}

		creativeHandle, err := c.adapter.CreateCreative(ctx, core.CreativeSpec{
			Name:     unit.Name,
			Format:   job.Format,
			Group:    unit.Group,
			Texts:    texts,
			StoreURL: storeURL,
			CTA:      texts.CTA,
		})
		if err != nil {
			return report, err
		}

		attached, err := c.adapter.AttachToDestination(ctx, dest, creativeHandle, unit.Name)
		if err != nil {
			return report, err
		}
		report.RemoteHandles = append(report.RemoteHandles, attached)
	}

	return report, nil
}

// fail marks the job failed and reports the error through the
// diagnostics channel; the user message in the report is the concise
// one, never the raw error.
func (c *Controller) fail(job *Job, err error) Report {
	_ = job.transition(StatusFailed)
	metrics.JobsTotal.WithLabelValues(c.adapter.Network(), string(StatusFailed)).Inc()

	msg := c.diag.Report(err, map[string]interface{}{
		"job_id":      job.ID,
		"network":     job.Network,
		"destination": job.Destination.ID,
	})

	return Report{JobID: job.ID, Status: StatusFailed, UserMessage: msg}
}

// abortIfCanceled converts a canceled context into an aborted report.
// Returns nil when the context is still live.
func (c *Controller) abortIfCanceled(ctx context.Context, job *Job) *Report {
	if ctx.Err() == nil {
		return nil
	}

	_ = job.transition(StatusAborted)
	metrics.JobsTotal.WithLabelValues(c.adapter.Network(), string(StatusAborted)).Inc()
	c.logger.Warn("job aborted", zap.String("job_id", job.ID), zap.Error(ctx.Err()))

	// A deadline is a timeout; an explicit cancel gets its own message.
	msg := diag.CanceledMessage
	if ctx.Err() == context.DeadlineExceeded {
		msg = diag.UserMessage(errors.ErrorTypeTimeout)
	}
	return &Report{JobID: job.ID, Status: StatusAborted, UserMessage: msg}
}
