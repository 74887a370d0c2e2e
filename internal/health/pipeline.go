// Package health audits bookmark links in two stages: a parallel,
// response-opaque reachability sweep, then sequential batches to the
// classification oracle. The pipeline reads a tree snapshot and
// produces a report; it never mutates the tree.
package health

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/oracle"
	"github.com/nikbrunner/bmclean/internal/tree"
)

// StatusNetworkError classifies a bookmark whose reachability probe
// failed at the transport level. It never comes from the oracle.
const StatusNetworkError = oracle.Status("NetworkError")

const (
	// aiBatchSize is the number of bookmarks per oracle request.
	aiBatchSize = 25
	// progressEvery throttles precheck progress reporting.
	progressEvery = 50
)

// Stage identifies where the pipeline currently is.
type Stage int

const (
	StagePrecheck Stage = iota
	StageAICheck
	StageDone
)

// String returns the stage name for logs and progress views.
func (s Stage) String() string {
	switch s {
	case StagePrecheck:
		return "precheck"
	case StageAICheck:
		return "aicheck"
	default:
		return "done"
	}
}

// Issue is one unhealthy bookmark in the report.
type Issue struct {
	Bookmark *model.Bookmark
	Path     string
	Status   oracle.Status
	NewURL   string // suggested replacement, set for PermanentRedirect
	Detail   string // normalized probe error for NetworkError issues
}

// Report is the audit outcome.
type Report struct {
	Issues       []Issue
	TotalChecked int
	TotalIssues  int
	HealthScore  int // round(100 * (checked - issues) / checked), 100 when nothing checked
}

// Progress is a snapshot of pipeline advancement.
type Progress struct {
	Stage   Stage
	Checked int
	Issues  int
	Total   int
}

// ProgressFunc receives incremental progress. It may be called from the
// pipeline's own goroutine but never concurrently with itself.
type ProgressFunc func(Progress)

// Classifier is the slice of the oracle the pipeline needs.
type Classifier interface {
	ClassifyLinks(ctx context.Context, targets []oracle.LinkTarget) ([]oracle.LinkVerdict, error)
}

// QuotaGate records quota exhaustion so callers can suppress further
// oracle-dependent operations until the condition is explicitly
// cleared. It is passed in rather than held as package state so tests
// and independent runs cannot leak into each other.
type QuotaGate struct {
	mu       sync.Mutex
	exceeded bool
}

// Exceeded reports whether the gate has been tripped.
func (g *QuotaGate) Exceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exceeded
}

// Trip marks the quota as exhausted.
func (g *QuotaGate) Trip() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exceeded = true
}

// Clear re-enables oracle-dependent operations.
func (g *QuotaGate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exceeded = false
}

// PipelineParams holds dependencies for NewPipeline.
type PipelineParams struct {
	Prober     Prober
	Classifier Classifier
	Gate       *QuotaGate
	Logger     *slog.Logger
	OnProgress ProgressFunc
}

// Pipeline runs the two-stage link audit.
type Pipeline struct {
	prober     Prober
	classifier Classifier
	gate       *QuotaGate
	logger     *slog.Logger
	onProgress ProgressFunc
}

// NewPipeline wires an audit pipeline. Gate may be nil when the caller
// does not gate across runs; Logger may be nil for silence.
func NewPipeline(params PipelineParams) *Pipeline {
	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gate := params.Gate
	if gate == nil {
		gate = &QuotaGate{}
	}
	return &Pipeline{
		prober:     params.Prober,
		classifier: params.Classifier,
		gate:       gate,
		logger:     logger,
		onProgress: params.OnProgress,
	}
}

// Run audits every bookmark in the list. A quota signature from the
// oracle aborts the whole run with oracle.ErrQuotaExceeded and trips
// the gate; every other failure mode is absorbed into the report.
func (p *Pipeline) Run(ctx context.Context, bookmarks []*model.Bookmark) (*Report, error) {
	if p.gate.Exceeded() {
		return nil, oracle.ErrQuotaExceeded
	}

	total := len(bookmarks)
	issues, survivors := p.precheck(ctx, bookmarks)

	if len(survivors) > 0 {
		aiIssues, err := p.aicheck(ctx, survivors, len(issues), total)
		if err != nil {
			return nil, err
		}
		issues = append(issues, aiIssues...)
	}

	p.report(Progress{Stage: StageDone, Checked: total, Issues: len(issues), Total: total})

	score := 100
	if total > 0 {
		score = int(math.Round(100 * float64(total-len(issues)) / float64(total)))
	}
	return &Report{
		Issues:       issues,
		TotalChecked: total,
		TotalIssues:  len(issues),
		HealthScore:  score,
	}, nil
}

// precheck probes every bookmark in parallel. Probes are unordered but
// all awaited before the survivor set is returned, so aicheck always
// sees the complete set. Issues and survivors keep input order.
func (p *Pipeline) precheck(ctx context.Context, bookmarks []*model.Bookmark) ([]Issue, []*model.Bookmark) {
	total := len(bookmarks)
	probeErrs := make([]error, total)

	var mu sync.Mutex
	checked := 0
	failed := 0

	g, ctx := errgroup.WithContext(ctx)
	for i, b := range bookmarks {
		g.Go(func() error {
			err := p.prober.Probe(ctx, b.URL)
			probeErrs[i] = err

			mu.Lock()
			checked++
			if err != nil {
				failed++
			}
			if checked%progressEvery == 0 || checked == total {
				p.report(Progress{Stage: StagePrecheck, Checked: checked, Issues: failed, Total: total})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var issues []Issue
	var survivors []*model.Bookmark
	for i, b := range bookmarks {
		if err := probeErrs[i]; err != nil {
			issues = append(issues, Issue{
				Bookmark: b,
				Status:   StatusNetworkError,
				Detail:   normalizeProbeError(err),
			})
			continue
		}
		survivors = append(survivors, b)
	}
	return issues, survivors
}

// aicheck classifies survivors in fixed-size batches, strictly
// sequentially to respect the oracle's rate limits. A batch that
// exhausts its retries contributes zero issues and is logged; a quota
// signature aborts everything.
func (p *Pipeline) aicheck(ctx context.Context, survivors []*model.Bookmark, issuesSoFar, total int) ([]Issue, error) {
	byID := make(map[string]*model.Bookmark, len(survivors))
	for _, b := range survivors {
		byID[b.ID] = b
	}

	var issues []Issue
	checked := total - len(survivors)

	for start := 0; start < len(survivors); start += aiBatchSize {
		end := min(start+aiBatchSize, len(survivors))
		batch := survivors[start:end]

		targets := make([]oracle.LinkTarget, len(batch))
		for i, b := range batch {
			targets[i] = oracle.LinkTarget{ID: b.ID, URL: b.URL}
		}

		verdicts, err := p.classifyWithRetry(ctx, targets)
		if err != nil {
			if errors.Is(err, oracle.ErrQuotaExceeded) {
				p.gate.Trip()
				return nil, err
			}
			// Partial failure is tolerated: one bad batch must not
			// abort the audit.
			p.logger.Warn("oracle batch failed, skipping",
				"batch_start", start, "batch_size", len(batch), "error", err)
			verdicts = nil
		}

		for _, v := range verdicts {
			if v.Status == oracle.StatusOK {
				continue
			}
			b, ok := byID[v.ID]
			if !ok {
				continue
			}
			issues = append(issues, Issue{
				Bookmark: b,
				Status:   v.Status,
				NewURL:   v.NewURL,
			})
		}

		checked += len(batch)
		p.report(Progress{
			Stage:   StageAICheck,
			Checked: checked,
			Issues:  issuesSoFar + len(issues),
			Total:   total,
		})
	}
	return issues, nil
}

// classifyWithRetry attempts one batch under the oracle retry policy:
// bounded attempts, exponential backoff with jitter, quota exhaustion
// never retried.
func (p *Pipeline) classifyWithRetry(ctx context.Context, targets []oracle.LinkTarget) ([]oracle.LinkVerdict, error) {
	var verdicts []oracle.LinkVerdict
	err := oracle.Retry(ctx, func() error {
		var err error
		verdicts, err = p.classifier.ClassifyLinks(ctx, targets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (p *Pipeline) report(progress Progress) {
	if p.onProgress != nil {
		p.onProgress(progress)
	}
}

// ResolveIssuePaths fills in each issue's breadcrumb path from a path
// map built by tree.BuildPathMap. Path resolution is deliberately
// decoupled from the network-bound stages.
func ResolveIssuePaths(report *Report, paths map[string]string) {
	for i := range report.Issues {
		path, ok := paths[report.Issues[i].Bookmark.ID]
		if !ok {
			path = tree.UnknownLocation
		}
		report.Issues[i].Path = path
	}
}
