package tree_test

import (
	"strings"
	"testing"

	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/tree"
)

func bm(id, title, url string, addedAt int64) *model.Bookmark {
	return &model.Bookmark{ID: id, Title: title, URL: url, AddedAt: addedAt}
}

func folder(id, title string, children ...model.Node) *model.Folder {
	return &model.Folder{ID: id, Title: title, Children: children}
}

// testTree builds:
//
//	root
//	├── b1 (https://a.com)
//	├── Dev
//	│   ├── b2 (https://b.com)
//	│   ├── React
//	│   │   └── b3 (https://c.com)
//	│   └── Empty
//	└── News
//	    └── b4 (https://a.com)
func testTree() *model.Folder {
	return folder("root", "Bookmarks",
		bm("b1", "A", "https://a.com", 100),
		folder("dev", "Dev",
			bm("b2", "B", "https://b.com", 200),
			folder("react", "React",
				bm("b3", "C", "https://c.com", 300),
			),
			folder("empty", "Empty"),
		),
		folder("news", "News",
			bm("b4", "A again", "https://a.com", 400),
		),
	)
}

func flatIDs(root *model.Folder) []string {
	var ids []string
	for _, b := range tree.Flatten(root) {
		ids = append(ids, b.ID)
	}
	return ids
}

func sameIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, got)
		}
	}
}

func TestFlatten_DepthFirstOrder(t *testing.T) {
	sameIDs(t, flatIDs(testTree()), []string{"b1", "b2", "b3", "b4"})
}

func TestFindByID(t *testing.T) {
	root := testTree()

	node, ok := tree.FindByID(root, "react")
	if !ok {
		t.Fatal("expected to find folder 'react'")
	}
	if node.NodeTitle() != "React" {
		t.Errorf("expected title 'React', got %q", node.NodeTitle())
	}

	node, ok = tree.FindByID(root, "b3")
	if !ok {
		t.Fatal("expected to find bookmark 'b3'")
	}
	if node.NodeID() != "b3" {
		t.Errorf("expected id 'b3', got %q", node.NodeID())
	}

	if _, ok := tree.FindByID(root, "missing"); ok {
		t.Error("expected absence for unknown id")
	}
}

func TestResolvePath(t *testing.T) {
	root := testTree()

	path, ok := tree.ResolvePath(root, "b3")
	if !ok {
		t.Fatal("expected path for b3")
	}
	if got := strings.Join(path, "/"); got != "Dev/React" {
		t.Errorf("expected path 'Dev/React', got %q", got)
	}

	path, ok = tree.ResolvePath(root, "b1")
	if !ok {
		t.Fatal("expected path for b1")
	}
	if len(path) != 0 {
		t.Errorf("expected empty path for top-level bookmark, got %v", path)
	}

	if _, ok := tree.ResolvePath(root, "missing"); ok {
		t.Error("expected absence for unknown id")
	}
}

// FindByID and ResolvePath must agree on presence.
func TestFindByID_ResolvePath_Consistent(t *testing.T) {
	root := testTree()
	for _, id := range []string{"b1", "b2", "b3", "b4", "dev", "react", "empty", "news", "missing"} {
		_, found := tree.FindByID(root, id)
		_, resolved := tree.ResolvePath(root, id)
		if found != resolved {
			t.Errorf("id %q: FindByID=%v but ResolvePath=%v", id, found, resolved)
		}
	}
}

func TestBuildPathMap_MatchesResolvePath(t *testing.T) {
	root := testTree()
	paths := tree.BuildPathMap(root)

	if len(paths) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(paths))
	}
	for _, b := range tree.Flatten(root) {
		segments, ok := tree.ResolvePath(root, b.ID)
		if !ok {
			t.Fatalf("ResolvePath failed for %s", b.ID)
		}
		want := strings.Join(segments, tree.PathSep)
		if paths[b.ID] != want {
			t.Errorf("path for %s: expected %q, got %q", b.ID, want, paths[b.ID])
		}
	}
}

func TestRemoveByIDs(t *testing.T) {
	root := testTree()
	result := tree.RemoveByIDs(root, map[string]bool{"b2": true, "b4": true})

	sameIDs(t, flatIDs(result), []string{"b1", "b3"})

	// Folders are never removed, even "News" which is now empty.
	if _, ok := tree.FindByID(result, "news"); !ok {
		t.Error("expected folder 'news' to survive bookmark removal")
	}

	// Input tree untouched.
	sameIDs(t, flatIDs(root), []string{"b1", "b2", "b3", "b4"})
}

func TestRemoveByIDs_SharesUntouchedSubtrees(t *testing.T) {
	root := testTree()
	result := tree.RemoveByIDs(root, map[string]bool{"b4": true})

	// The Dev subtree had no removals, so it is shared by reference.
	before, _ := tree.FindByID(root, "dev")
	after, _ := tree.FindByID(result, "dev")
	if before != after {
		t.Error("expected untouched subtree to be shared between revisions")
	}
}

func TestRemoveByIDs_AbsentIDIsNoOp(t *testing.T) {
	root := testTree()
	result := tree.RemoveByIDs(root, map[string]bool{"missing": true})
	if result != root {
		t.Error("expected unchanged tree for absent ids")
	}
}

// Pruning empty folders never removes bookmarks.
func TestRemoveEmptyFolders_PreservesBookmarks(t *testing.T) {
	root := testTree()
	result := tree.RemoveEmptyFolders(root)

	sameIDs(t, flatIDs(result), flatIDs(root))

	if _, ok := tree.FindByID(result, "empty"); ok {
		t.Error("expected empty folder to be pruned")
	}
}

func TestRemoveEmptyFolders_RecursiveEmptiness(t *testing.T) {
	// A folder whose only child is an empty folder is itself pruned.
	root := folder("root", "Bookmarks",
		folder("outer", "Outer",
			folder("inner", "Inner"),
		),
		bm("b1", "A", "https://a.com", 0),
	)
	result := tree.RemoveEmptyFolders(root)

	if _, ok := tree.FindByID(result, "outer"); ok {
		t.Error("expected recursively empty folder to be pruned")
	}
	sameIDs(t, flatIDs(result), []string{"b1"})
}

func TestFindEmptyFolders(t *testing.T) {
	root := testTree()
	empties := tree.FindEmptyFolders(root)

	if len(empties) != 1 {
		t.Fatalf("expected 1 empty folder, got %d", len(empties))
	}
	if empties[0].ID != "empty" {
		t.Errorf("expected id 'empty', got %q", empties[0].ID)
	}
	if empties[0].Path != "Dev" {
		t.Errorf("expected path 'Dev', got %q", empties[0].Path)
	}
}

func TestRemoveFoldersByIDs(t *testing.T) {
	// Dev contains 2 nested bookmarks, one nested folder with a
	// bookmark, and one nested empty folder.
	root := testTree()
	result, removed := tree.RemoveFoldersByIDs(root, map[string]bool{"dev": true})

	if removed != 1 {
		t.Errorf("expected removedCount 1, got %d", removed)
	}
	// Bookmarks inside are gone entirely, not hoisted.
	sameIDs(t, flatIDs(result), []string{"b1", "b4"})
	if _, ok := tree.FindByID(result, "react"); ok {
		t.Error("expected nested folder to be gone with its parent")
	}
}

func TestRemoveFoldersByIDs_CountsNestedMatches(t *testing.T) {
	root := testTree()
	_, removed := tree.RemoveFoldersByIDs(root, map[string]bool{"dev": true, "react": true})
	if removed != 2 {
		t.Errorf("expected removedCount 2 (dev + nested react), got %d", removed)
	}
}

func TestUpdateURL(t *testing.T) {
	root := tree.AnnotateSearchIndex(testTree())
	result := tree.UpdateURL(root, "b2", "https://new.example.com")

	node, ok := tree.FindByID(result, "b2")
	if !ok {
		t.Fatal("expected b2 to exist")
	}
	b := node.(*model.Bookmark)
	if b.URL != "https://new.example.com" {
		t.Errorf("expected updated URL, got %q", b.URL)
	}
	if b.SearchText != "" {
		t.Error("expected stale search text to be cleared on the new revision")
	}

	// Original revision untouched.
	orig, _ := tree.FindByID(root, "b2")
	if orig.(*model.Bookmark).URL != "https://b.com" {
		t.Error("expected original revision to keep the old URL")
	}

	// Absent id is a no-op.
	if tree.UpdateURL(root, "missing", "https://x.com") != root {
		t.Error("expected unchanged tree for absent id")
	}
}

func TestAnnotateSearchIndex(t *testing.T) {
	root := tree.AnnotateSearchIndex(testTree())

	for _, b := range tree.Flatten(root) {
		want := strings.ToLower(b.Title) + " " + strings.ToLower(b.URL)
		if b.SearchText != want {
			t.Errorf("bookmark %s: expected search text %q, got %q", b.ID, want, b.SearchText)
		}
	}
}

func TestAnnotateChildStats(t *testing.T) {
	root := tree.AnnotateChildStats(testTree())

	if root.Stats == nil {
		t.Fatal("expected stats on root")
	}
	if root.Stats.Bookmarks != 1 || root.Stats.Folders != 2 {
		t.Errorf("expected root stats 1 bookmark / 2 folders, got %+v", *root.Stats)
	}

	node, _ := tree.FindByID(root, "dev")
	dev := node.(*model.Folder)
	if dev.Stats == nil || dev.Stats.Bookmarks != 1 || dev.Stats.Folders != 2 {
		t.Errorf("expected dev stats 1 bookmark / 2 folders, got %+v", dev.Stats)
	}
}

func TestFindDuplicates(t *testing.T) {
	groups := tree.FindDuplicates(tree.Flatten(testTree()))

	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
	group, ok := groups["https://a.com"]
	if !ok {
		t.Fatal("expected group for https://a.com")
	}
	if len(group) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(group))
	}
	for _, b := range group {
		if b.URL != "https://a.com" {
			t.Errorf("group member URL %q does not match group key exactly", b.URL)
		}
	}
	// Encounter order preserved.
	if group[0].ID != "b1" || group[1].ID != "b4" {
		t.Errorf("expected encounter order b1, b4; got %s, %s", group[0].ID, group[1].ID)
	}
}

func TestFindDuplicates_NoNormalization(t *testing.T) {
	bookmarks := []*model.Bookmark{
		bm("b1", "A", "https://a.com", 0),
		bm("b2", "B", "https://a.com/", 0), // trailing slash: different key
	}
	if groups := tree.FindDuplicates(bookmarks); len(groups) != 0 {
		t.Errorf("expected no groups for URLs differing in trailing slash, got %d", len(groups))
	}
}
