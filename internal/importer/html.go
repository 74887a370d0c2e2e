// Package importer reads exported Netscape bookmark HTML into a tree.
// Nodes are created here and nowhere else except the reorganizer;
// every node gets a fresh id, so re-importing an export regenerates
// ids while preserving structure.
package importer

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nikbrunner/bmclean/internal/model"
)

// ErrEmptyImport means the input held no folders and no bookmarks.
// No partial tree is ever returned alongside an error.
var ErrEmptyImport = errors.New("import contains no bookmarks or folders")

// RootTitle names the implicit root folder of an imported tree.
const RootTitle = "Bookmarks"

// ParseHTMLBookmarks parses Netscape bookmark HTML into a tree rooted
// at a synthetic top-level folder. Entries with an empty or
// script-protocol href are silently dropped; HTML entities in titles
// are decoded and embedded tags stripped by the parser's text
// extraction.
func ParseHTMLBookmarks(r io.Reader) (*model.Folder, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := model.NewFolder(model.NewFolderParams{Title: RootTitle})

	// Folder stack: new entries land in the top. The root sits at the
	// bottom and is never popped.
	stack := []*model.Folder{root}
	var pending *model.Folder // folder waiting for its DL block

	top := func() *model.Folder { return stack[len(stack)-1] }

	var parse func(n *html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				title := getTextContent(n)
				if title == "" {
					return
				}
				folder := model.NewFolder(model.NewFolderParams{
					Title:   title,
					AddedAt: parseTimestamp(getAttr(n, "add_date")),
				})
				parent := top()
				parent.Children = append(parent.Children, folder)
				pending = folder
				return // don't recurse into H3

			case "a":
				href := strings.TrimSpace(getAttr(n, "href"))
				if !validHref(href) {
					return
				}
				title := getTextContent(n)
				if title == "" {
					title = href
				}
				bookmark := model.NewBookmark(model.NewBookmarkParams{
					Title:   title,
					URL:     href,
					AddedAt: parseTimestamp(getAttr(n, "add_date")),
					IconRef: getAttr(n, "icon"),
				})
				parent := top()
				parent.Children = append(parent.Children, bookmark)
				return // don't recurse into A

			case "dl":
				// A DL opens the contents of the folder declared by
				// the preceding H3, or stays at the current level.
				pushed := false
				if pending != nil {
					stack = append(stack, pending)
					pending = nil
					pushed = true
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}
				if pushed {
					stack = stack[:len(stack)-1]
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)

	if len(root.Children) == 0 {
		return nil, ErrEmptyImport
	}
	return root, nil
}

// validHref rejects empty and script-protocol URLs.
func validHref(href string) bool {
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	return !strings.HasPrefix(lower, "javascript:") && !strings.HasPrefix(lower, "vbscript:")
}

// parseTimestamp reads an ADD_DATE attribute. Zero means unknown.
func parseTimestamp(value string) int64 {
	if value == "" {
		return 0
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ts < 0 {
		return 0
	}
	return ts
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}
