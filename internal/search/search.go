// Package search provides fuzzy matching over the tree's search index.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/tree"
)

// Result represents a fuzzy search match.
type Result struct {
	Bookmark       *model.Bookmark
	MatchedIndexes []int
	Score          int
}

// searchTexts implements fuzzy.Source over a bookmark slice.
type searchTexts []*model.Bookmark

func (st searchTexts) String(i int) string {
	b := st[i]
	if b.SearchText != "" {
		return b.SearchText
	}
	// Tree not annotated; match on the title alone.
	return strings.ToLower(b.Title)
}

func (st searchTexts) Len() int {
	return len(st)
}

// FuzzySearch matches the query against every bookmark's search index
// (lowercased title + url, see tree.AnnotateSearchIndex). Results are
// sorted by match score, best first.
func FuzzySearch(root *model.Folder, query string) []Result {
	if query == "" {
		return nil
	}

	bookmarks := searchTexts(tree.Flatten(root))
	matches := fuzzy.FindFrom(strings.ToLower(query), bookmarks)

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Bookmark:       bookmarks[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}

	return results
}
