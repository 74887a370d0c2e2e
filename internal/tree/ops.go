// Package tree holds the pure algorithms over a bookmark tree snapshot.
// No function here mutates its input: edits rebuild the folders on the
// path from root to the change and share every untouched subtree with
// the previous revision.
package tree

import (
	"strings"

	"github.com/nikbrunner/bmclean/internal/model"
)

// PathSep joins breadcrumb segments for display.
const PathSep = " / "

// UnknownLocation is rendered when an id cannot be resolved to a path.
const UnknownLocation = "Unknown Location"

// EmptyFolderInfo describes a folder with no children.
type EmptyFolderInfo struct {
	ID    string
	Title string
	Path  string
}

// FindByID searches the tree depth-first (pre-order) and returns the
// first node with the given id.
func FindByID(root *model.Folder, id string) (model.Node, bool) {
	if root == nil {
		return nil, false
	}
	if root.ID == id {
		return root, true
	}
	for _, child := range root.Children {
		switch n := child.(type) {
		case *model.Bookmark:
			if n.ID == id {
				return n, true
			}
		case *model.Folder:
			if found, ok := FindByID(n, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Flatten returns all bookmarks in depth-first order. Folders are
// traversed, never emitted.
func Flatten(root *model.Folder) []*model.Bookmark {
	var out []*model.Bookmark
	var walk func(f *model.Folder)
	walk = func(f *model.Folder) {
		for _, child := range f.Children {
			switch n := child.(type) {
			case *model.Bookmark:
				out = append(out, n)
			case *model.Folder:
				walk(n)
			}
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// ResolvePath returns the chain of ancestor folder titles for the node
// with the given id. The root contributes no segment. Returns false if
// the id is not in the tree; callers render that as "Unknown Location".
func ResolvePath(root *model.Folder, id string) ([]string, bool) {
	if root == nil {
		return nil, false
	}
	if root.ID == id {
		return []string{}, true
	}
	var search func(f *model.Folder, trail []string) ([]string, bool)
	search = func(f *model.Folder, trail []string) ([]string, bool) {
		for _, child := range f.Children {
			if child.NodeID() == id {
				return append([]string(nil), trail...), true
			}
			if sub, ok := child.(*model.Folder); ok {
				if path, found := search(sub, append(trail, sub.Title)); found {
					return path, true
				}
			}
		}
		return nil, false
	}
	return search(root, nil)
}

// BuildPathMap resolves the breadcrumb path for every bookmark in one
// traversal. Audits and reorganizations resolve paths for thousands of
// ids, so one pass beats calling ResolvePath per bookmark.
func BuildPathMap(root *model.Folder) map[string]string {
	paths := make(map[string]string)
	var walk func(f *model.Folder, trail []string)
	walk = func(f *model.Folder, trail []string) {
		for _, child := range f.Children {
			switch n := child.(type) {
			case *model.Bookmark:
				paths[n.ID] = strings.Join(trail, PathSep)
			case *model.Folder:
				walk(n, append(trail, n.Title))
			}
		}
	}
	if root != nil {
		walk(root, nil)
	}
	return paths
}

// RemoveByIDs removes every bookmark whose id is in ids. Folders are
// never removed even if they end up empty; RemoveEmptyFolders handles
// emptiness separately. Untouched subtrees are shared with the input.
func RemoveByIDs(root *model.Folder, ids map[string]bool) *model.Folder {
	if root == nil || len(ids) == 0 {
		return root
	}
	folder, _ := removeBookmarks(root, ids)
	return folder
}

func removeBookmarks(f *model.Folder, ids map[string]bool) (*model.Folder, bool) {
	children := make([]model.Node, 0, len(f.Children))
	changed := false
	for _, child := range f.Children {
		switch n := child.(type) {
		case *model.Bookmark:
			if ids[n.ID] {
				changed = true
				continue
			}
			children = append(children, n)
		case *model.Folder:
			sub, subChanged := removeBookmarks(n, ids)
			children = append(children, sub)
			changed = changed || subChanged
		}
	}
	if !changed {
		return f, false
	}
	return f.WithChildren(children), true
}

// RemoveEmptyFolders prunes folders that have no surviving children
// after their own subtrees are cleaned, post-order. Bookmarks are
// always kept, so flattening before and after yields the same list.
func RemoveEmptyFolders(root *model.Folder) *model.Folder {
	if root == nil {
		return nil
	}
	children := make([]model.Node, 0, len(root.Children))
	changed := false
	for _, child := range root.Children {
		switch n := child.(type) {
		case *model.Bookmark:
			children = append(children, n)
		case *model.Folder:
			cleaned := RemoveEmptyFolders(n)
			if len(cleaned.Children) == 0 {
				changed = true
				continue
			}
			children = append(children, cleaned)
			changed = changed || cleaned != n
		}
	}
	if !changed {
		return root
	}
	return root.WithChildren(children)
}

// FindEmptyFolders reports every folder whose own children sequence is
// empty, with its breadcrumb path.
func FindEmptyFolders(root *model.Folder) []EmptyFolderInfo {
	var out []EmptyFolderInfo
	var walk func(f *model.Folder, trail []string)
	walk = func(f *model.Folder, trail []string) {
		for _, child := range f.Children {
			sub, ok := child.(*model.Folder)
			if !ok {
				continue
			}
			if len(sub.Children) == 0 {
				out = append(out, EmptyFolderInfo{
					ID:    sub.ID,
					Title: sub.Title,
					Path:  strings.Join(trail, PathSep),
				})
				continue
			}
			walk(sub, append(trail, sub.Title))
		}
	}
	if root != nil {
		walk(root, nil)
	}
	return out
}

// RemoveFoldersByIDs removes whole folder subtrees whose id is in ids
// and returns the new tree plus the number of folders removed. The
// count covers matched folders only, including matches nested inside a
// removed subtree; bookmarks inside are gone but not counted.
func RemoveFoldersByIDs(root *model.Folder, ids map[string]bool) (*model.Folder, int) {
	if root == nil || len(ids) == 0 {
		return root, 0
	}
	children := make([]model.Node, 0, len(root.Children))
	removed := 0
	changed := false
	for _, child := range root.Children {
		sub, ok := child.(*model.Folder)
		if !ok {
			children = append(children, child)
			continue
		}
		if ids[sub.ID] {
			removed += 1 + countMatchingFolders(sub, ids)
			changed = true
			continue
		}
		cleaned, nested := RemoveFoldersByIDs(sub, ids)
		children = append(children, cleaned)
		removed += nested
		changed = changed || cleaned != sub
	}
	if !changed {
		return root, removed
	}
	return root.WithChildren(children), removed
}

// countMatchingFolders counts folders inside f (exclusive) whose id is
// in ids. Used to account for matches swallowed by a removed ancestor.
func countMatchingFolders(f *model.Folder, ids map[string]bool) int {
	count := 0
	for _, child := range f.Children {
		if sub, ok := child.(*model.Folder); ok {
			if ids[sub.ID] {
				count++
			}
			count += countMatchingFolders(sub, ids)
		}
	}
	return count
}

// UpdateURL rewrites exactly one bookmark's URL. The search index is
// left stale; callers must run AnnotateSearchIndex before relying on
// it. An absent id returns the input tree unchanged.
func UpdateURL(root *model.Folder, id, newURL string) *model.Folder {
	if root == nil {
		return nil
	}
	folder, _ := updateURL(root, id, newURL)
	return folder
}

func updateURL(f *model.Folder, id, newURL string) (*model.Folder, bool) {
	for i, child := range f.Children {
		switch n := child.(type) {
		case *model.Bookmark:
			if n.ID != id {
				continue
			}
			children := append([]model.Node(nil), f.Children...)
			children[i] = n.WithURL(newURL)
			return f.WithChildren(children), true
		case *model.Folder:
			sub, changed := updateURL(n, id, newURL)
			if !changed {
				continue
			}
			children := append([]model.Node(nil), f.Children...)
			children[i] = sub
			return f.WithChildren(children), true
		}
	}
	return f, false
}

// AnnotateSearchIndex returns a revision with SearchText recomputed for
// every bookmark: lowercase title, a space, lowercase URL. Must be
// re-run after any title- or url-affecting mutation before search is
// trusted again.
func AnnotateSearchIndex(root *model.Folder) *model.Folder {
	if root == nil {
		return nil
	}
	children := make([]model.Node, len(root.Children))
	for i, child := range root.Children {
		switch n := child.(type) {
		case *model.Bookmark:
			children[i] = n.WithSearchText(strings.ToLower(n.Title) + " " + strings.ToLower(n.URL))
		case *model.Folder:
			children[i] = AnnotateSearchIndex(n)
		}
	}
	clone := *root
	clone.Children = children
	return &clone
}

// AnnotateChildStats returns a revision with direct-child counts cached
// on every folder.
func AnnotateChildStats(root *model.Folder) *model.Folder {
	if root == nil {
		return nil
	}
	children := make([]model.Node, len(root.Children))
	stats := model.ChildStats{}
	for i, child := range root.Children {
		switch n := child.(type) {
		case *model.Bookmark:
			children[i] = n
			stats.Bookmarks++
		case *model.Folder:
			children[i] = AnnotateChildStats(n)
			stats.Folders++
		}
	}
	clone := *root
	clone.Children = children
	clone.Stats = &stats
	return &clone
}

// FindDuplicates groups bookmarks by exact URL string match, no
// normalization of scheme, trailing slash, or query order. Only URLs
// with at least two occurrences are returned; each group preserves
// encounter order.
func FindDuplicates(bookmarks []*model.Bookmark) map[string][]*model.Bookmark {
	byURL := make(map[string][]*model.Bookmark)
	for _, b := range bookmarks {
		byURL[b.URL] = append(byURL[b.URL], b)
	}
	for url, group := range byURL {
		if len(group) < 2 {
			delete(byURL, url)
		}
	}
	return byURL
}
