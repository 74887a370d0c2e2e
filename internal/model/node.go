// Package model defines the bookmark tree: an immutable hierarchy of
// folders containing bookmarks and sub-folders. Trees are never mutated
// in place; every edit in internal/tree produces a new revision that
// shares untouched subtrees with the old one.
package model

// Node is a tree element, either a *Bookmark or a *Folder.
type Node interface {
	NodeID() string
	NodeTitle() string
}

// Bookmark represents a saved URL with metadata.
type Bookmark struct {
	ID      string
	Title   string
	URL     string
	AddedAt int64  // epoch seconds, 0 = unknown creation time
	IconRef string // favicon data reference from the import, may be empty

	// SearchText is a derived cache: lowercase title + url, set by
	// tree.AnnotateSearchIndex. Empty until the tree is annotated, and
	// stale after any title/url change until re-annotated.
	SearchText string
}

// NodeID implements Node.
func (b *Bookmark) NodeID() string { return b.ID }

// NodeTitle implements Node.
func (b *Bookmark) NodeTitle() string { return b.Title }

// WithURL returns a copy of the bookmark with a different URL.
// SearchText is cleared since it no longer matches.
func (b *Bookmark) WithURL(url string) *Bookmark {
	clone := *b
	clone.URL = url
	clone.SearchText = ""
	return &clone
}

// WithSearchText returns a copy of the bookmark with SearchText set.
func (b *Bookmark) WithSearchText(text string) *Bookmark {
	clone := *b
	clone.SearchText = text
	return &clone
}

// ChildStats counts a folder's direct children. Not recursive.
type ChildStats struct {
	Bookmarks int
	Folders   int
}

// Folder represents a container for bookmarks and other folders.
// Children order is meaningful: it is the bookmark-bar order from the
// import, and every operation preserves the relative order of survivors.
type Folder struct {
	ID       string
	Title    string
	AddedAt  int64
	Children []Node

	// Synthetic marks folders created by automated categorization
	// rather than present in the original import.
	Synthetic bool

	// Stats is a derived cache of direct-child counts, set by
	// tree.AnnotateChildStats. Nil until annotated.
	Stats *ChildStats
}

// NodeID implements Node.
func (f *Folder) NodeID() string { return f.ID }

// NodeTitle implements Node.
func (f *Folder) NodeTitle() string { return f.Title }

// WithChildren returns a copy of the folder holding the given children.
// Stats is cleared since the child set changed.
func (f *Folder) WithChildren(children []Node) *Folder {
	clone := *f
	clone.Children = children
	clone.Stats = nil
	return &clone
}

// NewBookmarkParams holds parameters for creating a new Bookmark.
type NewBookmarkParams struct {
	Title   string
	URL     string
	AddedAt int64
	IconRef string
}

// NewBookmark creates a Bookmark with a generated id.
func NewBookmark(params NewBookmarkParams) *Bookmark {
	return &Bookmark{
		ID:      NewID(),
		Title:   params.Title,
		URL:     params.URL,
		AddedAt: params.AddedAt,
		IconRef: params.IconRef,
	}
}

// NewFolderParams holds parameters for creating a new Folder.
type NewFolderParams struct {
	Title     string
	AddedAt   int64
	Synthetic bool
}

// NewFolder creates an empty Folder with a generated id.
func NewFolder(params NewFolderParams) *Folder {
	return &Folder{
		ID:        NewID(),
		Title:     params.Title,
		AddedAt:   params.AddedAt,
		Synthetic: params.Synthetic,
	}
}
