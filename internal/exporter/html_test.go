package exporter_test

import (
	"strings"
	"testing"

	"github.com/nikbrunner/bmclean/internal/exporter"
	"github.com/nikbrunner/bmclean/internal/importer"
	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/tree"
)

func sampleTree() *model.Folder {
	return &model.Folder{
		ID: "root", Title: "Bookmarks",
		Children: []model.Node{
			&model.Bookmark{ID: "b1", Title: "Top Level", URL: "https://top.example.com", AddedAt: 1600000000},
			&model.Folder{
				ID: "dev", Title: "Development", AddedAt: 1500000000,
				Children: []model.Node{
					&model.Bookmark{ID: "b2", Title: "Go Blog", URL: "https://go.dev/blog", AddedAt: 1700000000},
					&model.Folder{
						ID: "react", Title: "React",
						Children: []model.Node{
							&model.Bookmark{ID: "b3", Title: "Docs & More", URL: "https://react.dev?a=1&b=2", AddedAt: 1650000000},
						},
					},
				},
			},
		},
	}
}

func TestExportHTML_Structure(t *testing.T) {
	out := exporter.ExportHTML(sampleTree())

	if !strings.HasPrefix(out, "<!DOCTYPE NETSCAPE-Bookmark-file-1>") {
		t.Error("expected Netscape doctype header")
	}
	if !strings.Contains(out, `<DT><H3 ADD_DATE="1500000000">Development</H3>`) {
		t.Error("expected folder heading with timestamp")
	}
	if !strings.Contains(out, `<DT><A HREF="https://top.example.com" ADD_DATE="1600000000">Top Level</A>`) {
		t.Error("expected top-level bookmark entry")
	}
	// Entities escaped in titles and URLs.
	if !strings.Contains(out, "Docs &amp; More") {
		t.Error("expected escaped title")
	}
	if !strings.Contains(out, "https://react.dev?a=1&amp;b=2") {
		t.Error("expected escaped URL")
	}
	// Every folder opens and closes a DL pair (plus the outer one).
	if opens, closes := strings.Count(out, "<DL><p>"), strings.Count(out, "</DL><p>"); opens != 3 || closes != 3 {
		t.Errorf("expected 3 DL pairs, got %d opens / %d closes", opens, closes)
	}
}

// Export then re-import: same (title, url) multiset and the same
// nesting structure. Ids are regenerated on import.
func TestExportImport_RoundTrip(t *testing.T) {
	original := sampleTree()

	reimported, err := importer.ParseHTMLBookmarks(strings.NewReader(exporter.ExportHTML(original)))
	if err != nil {
		t.Fatalf("re-import failed: %v", err)
	}

	origBookmarks := tree.Flatten(original)
	newBookmarks := tree.Flatten(reimported)
	if len(newBookmarks) != len(origBookmarks) {
		t.Fatalf("expected %d bookmarks, got %d", len(origBookmarks), len(newBookmarks))
	}

	origPaths := tree.BuildPathMap(original)
	newPaths := tree.BuildPathMap(reimported)

	type key struct{ title, url, path string }
	count := make(map[key]int)
	for _, b := range origBookmarks {
		count[key{b.Title, b.URL, origPaths[b.ID]}]++
	}
	for _, b := range newBookmarks {
		count[key{b.Title, b.URL, newPaths[b.ID]}]--
	}
	for k, n := range count {
		if n != 0 {
			t.Errorf("round-trip mismatch for %+v (delta %d)", k, n)
		}
	}

	// Ids were regenerated.
	for i, b := range newBookmarks {
		if b.ID == origBookmarks[i].ID {
			t.Errorf("expected fresh id for %q", b.Title)
		}
	}
}

func TestExportHTML_EmptyTree(t *testing.T) {
	out := exporter.ExportHTML(&model.Folder{ID: "root", Title: "Bookmarks"})
	if !strings.Contains(out, "<DL><p>\n</DL><p>") {
		t.Error("expected a bare DL pair for an empty tree")
	}
}
