// Package organizer builds the "fix everything" proposal: duplicates
// collapsed, dead links dropped, survivors regrouped into oracle-named
// category folders. The live tree is never touched; the caller decides
// whether to apply the returned replacement.
package organizer

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmclean/internal/dedupe"
	"github.com/nikbrunner/bmclean/internal/health"
	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/oracle"
	"github.com/nikbrunner/bmclean/internal/tree"
)

const (
	// probeWaveSize is how many reachability probes run per wave.
	// Wider than the audit's oracle batches since the transport
	// enforces no rate limit.
	probeWaveSize = 50
	// categorizeBatchSize is the number of bookmarks per oracle
	// categorization request.
	categorizeBatchSize = 25

	// fallbackCategory collects bookmarks the oracle left unassigned.
	fallbackCategory = "Miscellaneous"
)

// Step identifies a phase of the reorganization for progress display.
type Step int

const (
	StepDedupe Step = iota
	StepProbe
	StepCategorize
)

// String returns the step name for logs and progress views.
func (s Step) String() string {
	switch s {
	case StepDedupe:
		return "dedupe"
	case StepProbe:
		return "probe"
	default:
		return "categorize"
	}
}

// Progress is a snapshot of reorganization advancement.
type Progress struct {
	Step  Step
	Done  int
	Total int
}

// ProgressFunc receives incremental progress, never concurrently.
type ProgressFunc func(Progress)

// Categorizer is the slice of the oracle the organizer needs.
type Categorizer interface {
	Categorize(ctx context.Context, items []oracle.CategorizeItem) ([]oracle.CategoryAssignment, error)
}

// Proposal is a complete replacement tree plus bookkeeping counts.
type Proposal struct {
	Tree               *model.Folder
	DuplicatesRemoved  int
	UnreachableRemoved int
	Categorized        int
	Unassigned         int // bookmarks that fell through to the fallback folder
}

// Params holds dependencies for New.
type Params struct {
	Prober      health.Prober
	Categorizer Categorizer
	Gate        *health.QuotaGate
	Logger      *slog.Logger
	OnProgress  ProgressFunc
}

// Organizer runs the three-step fix-it-all pipeline.
type Organizer struct {
	prober      health.Prober
	categorizer Categorizer
	gate        *health.QuotaGate
	logger      *slog.Logger
	onProgress  ProgressFunc
}

// New wires an organizer. Gate may be nil when runs are not gated;
// Logger may be nil for silence.
func New(params Params) *Organizer {
	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gate := params.Gate
	if gate == nil {
		gate = &health.QuotaGate{}
	}
	return &Organizer{
		prober:      params.Prober,
		categorizer: params.Categorizer,
		gate:        gate,
		logger:      logger,
		onProgress:  params.OnProgress,
	}
}

// Propose builds a replacement tree from the given snapshot. Quota
// exhaustion aborts with oracle.ErrQuotaExceeded and trips the gate;
// failed categorization batches degrade to the fallback folder.
func (o *Organizer) Propose(ctx context.Context, root *model.Folder) (*Proposal, error) {
	if o.gate.Exceeded() {
		return nil, oracle.ErrQuotaExceeded
	}

	bookmarks := tree.Flatten(root)

	// Step 1: collapse exact-URL duplicates, keeping the oldest entry.
	// Path-depth ranking is skipped here on purpose, unlike the
	// standalone duplicate report.
	removeIDs := dedupe.SelectByOldest(tree.FindDuplicates(bookmarks))
	duplicatesRemoved := len(removeIDs)
	o.report(Progress{Step: StepDedupe, Done: duplicatesRemoved, Total: len(bookmarks)})

	var survivors []*model.Bookmark
	for _, b := range bookmarks {
		if !removeIDs[b.ID] {
			survivors = append(survivors, b)
		}
	}

	// Step 2: reachability sweep; failed probes are also dropped.
	reachable, unreachableCount := o.probeSweep(ctx, survivors)

	// Step 3: regroup what is left into oracle-named categories.
	assigned, err := o.categorize(ctx, reachable)
	if err != nil {
		return nil, err
	}

	proposal := buildTree(root.Title, reachable, assigned)
	return &Proposal{
		Tree:               proposal,
		DuplicatesRemoved:  duplicatesRemoved,
		UnreachableRemoved: unreachableCount,
		Categorized:        len(reachable) - countUnassigned(reachable, assigned),
		Unassigned:         countUnassigned(reachable, assigned),
	}, nil
}

// probeSweep probes survivors in sequential waves of probeWaveSize,
// parallel within each wave. Returns the reachable bookmarks in input
// order and the number dropped.
func (o *Organizer) probeSweep(ctx context.Context, bookmarks []*model.Bookmark) ([]*model.Bookmark, int) {
	failed := make([]bool, len(bookmarks))
	done := 0

	for start := 0; start < len(bookmarks); start += probeWaveSize {
		end := min(start+probeWaveSize, len(bookmarks))

		var mu sync.Mutex
		g, waveCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			b := bookmarks[i]
			g.Go(func() error {
				err := o.prober.Probe(waveCtx, b.URL)
				mu.Lock()
				failed[i] = err != nil
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		done = end
		o.report(Progress{Step: StepProbe, Done: done, Total: len(bookmarks)})
	}

	var reachable []*model.Bookmark
	dropped := 0
	for i, b := range bookmarks {
		if failed[i] {
			dropped++
			continue
		}
		reachable = append(reachable, b)
	}
	return reachable, dropped
}

// categorize submits sequential oracle batches and returns id ->
// category display name. Batches that exhaust retries contribute
// nothing; their bookmarks end up unassigned.
func (o *Organizer) categorize(ctx context.Context, bookmarks []*model.Bookmark) (map[string]string, error) {
	// displayNames merges category variants case-insensitively across
	// batches, preferring a capitalized display form.
	displayNames := make(map[string]string)
	assigned := make(map[string]string)

	for start := 0; start < len(bookmarks); start += categorizeBatchSize {
		end := min(start+categorizeBatchSize, len(bookmarks))
		batch := bookmarks[start:end]

		items := make([]oracle.CategorizeItem, len(batch))
		for i, b := range batch {
			items[i] = oracle.CategorizeItem{ID: b.ID, Title: b.Title, URL: b.URL}
		}

		var assignments []oracle.CategoryAssignment
		err := oracle.Retry(ctx, func() error {
			var err error
			assignments, err = o.categorizer.Categorize(ctx, items)
			return err
		})
		if err != nil {
			if errors.Is(err, oracle.ErrQuotaExceeded) {
				o.gate.Trip()
				return nil, err
			}
			o.logger.Warn("categorization batch failed, bookmarks fall back to "+fallbackCategory,
				"batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}

		for _, a := range assignments {
			key := strings.ToLower(a.FolderName)
			current, seen := displayNames[key]
			if !seen || preferName(a.FolderName, current) {
				displayNames[key] = a.FolderName
			}
			for _, id := range a.BookmarkIDs {
				assigned[id] = key
			}
		}

		o.report(Progress{Step: StepCategorize, Done: end, Total: len(bookmarks)})
	}

	// Resolve keys to display names.
	resolved := make(map[string]string, len(assigned))
	for id, key := range assigned {
		resolved[id] = displayNames[key]
	}
	return resolved, nil
}

// preferName reports whether candidate should replace current as the
// display form of a case-insensitively merged category.
func preferName(candidate, current string) bool {
	candUpper := startsUpper(candidate)
	currUpper := startsUpper(current)
	return candUpper && !currUpper
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// buildTree assembles the replacement tree: one synthetic folder per
// category, top-level folders sorted alphabetically, bookmarks in their
// original relative order within each folder.
func buildTree(rootTitle string, bookmarks []*model.Bookmark, assigned map[string]string) *model.Folder {
	members := make(map[string][]model.Node)
	var names []string
	for _, b := range bookmarks {
		name, ok := assigned[b.ID]
		if !ok || name == "" {
			name = fallbackCategory
		}
		if _, seen := members[name]; !seen {
			names = append(names, name)
		}
		members[name] = append(members[name], b)
	}
	sort.Strings(names)

	root := model.NewFolder(model.NewFolderParams{Title: rootTitle})
	children := make([]model.Node, 0, len(names))
	for _, name := range names {
		folder := model.NewFolder(model.NewFolderParams{Title: name, Synthetic: true})
		folder.Children = members[name]
		children = append(children, folder)
	}
	root.Children = children
	return root
}

func countUnassigned(bookmarks []*model.Bookmark, assigned map[string]string) int {
	count := 0
	for _, b := range bookmarks {
		if name, ok := assigned[b.ID]; !ok || name == "" {
			count++
		}
	}
	return count
}

func (o *Organizer) report(progress Progress) {
	if o.onProgress != nil {
		o.onProgress(progress)
	}
}
