// Package dedupe turns raw duplicate groups into an actionable
// keep/discard recommendation. It only selects; removal is a separate
// explicit step through tree.RemoveByIDs.
package dedupe

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmclean/internal/health"
	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/tree"
)

// Candidate is one bookmark in a duplicate group with its location.
type Candidate struct {
	Bookmark *model.Bookmark
	Path     string
	Depth    int // number of ancestor folders, root excluded
}

// Group is one URL shared by two or more bookmarks, ranked. The first
// candidate is the recommended keeper unless Unreachable is set, in
// which case every candidate is recommended for removal.
type Group struct {
	URL         string
	Candidates  []Candidate
	Unreachable bool
}

// Keep returns the recommended keeper, or nil when the whole group is
// recommended for removal.
func (g Group) Keep() *model.Bookmark {
	if g.Unreachable || len(g.Candidates) == 0 {
		return nil
	}
	return g.Candidates[0].Bookmark
}

// RemoveIDs returns the ids recommended for removal from this group.
func (g Group) RemoveIDs() []string {
	var ids []string
	for i, c := range g.Candidates {
		if i == 0 && !g.Unreachable {
			continue
		}
		ids = append(ids, c.Bookmark.ID)
	}
	return ids
}

// Recommendation is the full keep/discard partition over all groups.
type Recommendation struct {
	Groups    []Group
	RemoveIDs map[string]bool
}

// Resolve ranks every duplicate group in the tree. The preferred keeper
// has the shortest breadcrumb depth, closer to top-level organization;
// ties prefer the newer AddedAt, with a missing timestamp ranking
// oldest. URLs in unreachable are marked for wholesale removal.
func Resolve(root *model.Folder, unreachable map[string]bool) Recommendation {
	groups := tree.FindDuplicates(tree.Flatten(root))

	urls := make([]string, 0, len(groups))
	for url := range groups {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	rec := Recommendation{RemoveIDs: make(map[string]bool)}
	for _, url := range urls {
		group := Group{URL: url, Unreachable: unreachable[url]}
		for _, b := range groups[url] {
			segments, ok := tree.ResolvePath(root, b.ID)
			path := tree.UnknownLocation
			depth := 0
			if ok {
				path = strings.Join(segments, tree.PathSep)
				depth = len(segments)
			}
			group.Candidates = append(group.Candidates, Candidate{
				Bookmark: b,
				Path:     path,
				Depth:    depth,
			})
		}

		sort.SliceStable(group.Candidates, func(i, j int) bool {
			a, b := group.Candidates[i], group.Candidates[j]
			if a.Depth != b.Depth {
				return a.Depth < b.Depth
			}
			return a.Bookmark.AddedAt > b.Bookmark.AddedAt
		})

		for _, id := range group.RemoveIDs() {
			rec.RemoveIDs[id] = true
		}
		rec.Groups = append(rec.Groups, group)
	}
	return rec
}

// ProbeDuplicateURLs probes each duplicated URL in the tree once, in
// parallel, and returns the set that failed. The result feeds the
// unreachable argument of Resolve so dead duplicate groups are marked
// for wholesale removal.
func ProbeDuplicateURLs(ctx context.Context, prober health.Prober, root *model.Folder) map[string]bool {
	groups := tree.FindDuplicates(tree.Flatten(root))
	urls := make([]string, 0, len(groups))
	for url := range groups {
		urls = append(urls, url)
	}

	failed := make([]bool, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			failed[i] = prober.Probe(ctx, url) != nil
			return nil
		})
	}
	_ = g.Wait()

	unreachable := make(map[string]bool)
	for i, url := range urls {
		if failed[i] {
			unreachable[url] = true
		}
	}
	return unreachable
}

// SelectByOldest picks removal ids from raw duplicate groups keeping
// only the oldest entry per URL, first-encountered on a timestamp tie.
// The reorganization flow uses this cheaper policy instead of the
// path-depth ranking above.
func SelectByOldest(groups map[string][]*model.Bookmark) map[string]bool {
	removeIDs := make(map[string]bool)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		keep := 0
		for i, b := range group {
			if b.AddedAt < group[keep].AddedAt {
				keep = i
			}
		}
		for i, b := range group {
			if i != keep {
				removeIDs[b.ID] = true
			}
		}
	}
	return removeIDs
}
