// Package exporter writes a bookmark tree back to Netscape HTML.
package exporter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/bmclean/internal/model"
)

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/bookmarks-cleaned-YYYY-MM-DD.html
func DefaultExportPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("bookmarks-cleaned-%s.html", time.Now().Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML renders the tree depth-first as Netscape bookmark HTML.
// Each folder emits an open/close pair wrapping its children; each
// bookmark emits one entry with href and timestamp attributes. The
// root folder itself is not emitted; its children are the top level.
func ExportHTML(root *model.Folder) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	if root != nil {
		writeChildren(&b, root.Children, 1)
	}

	b.WriteString("</DL><p>\n")

	return b.String()
}

// writeChildren recursively writes a folder's children in order.
func writeChildren(b *strings.Builder, children []model.Node, indent int) {
	prefix := strings.Repeat("    ", indent)

	for _, child := range children {
		switch n := child.(type) {
		case *model.Folder:
			if n.AddedAt > 0 {
				fmt.Fprintf(b, "%s<DT><H3 ADD_DATE=\"%d\">%s</H3>\n",
					prefix, n.AddedAt, html.EscapeString(n.Title))
			} else {
				fmt.Fprintf(b, "%s<DT><H3>%s</H3>\n", prefix, html.EscapeString(n.Title))
			}
			fmt.Fprintf(b, "%s<DL><p>\n", prefix)
			writeChildren(b, n.Children, indent+1)
			fmt.Fprintf(b, "%s</DL><p>\n", prefix)

		case *model.Bookmark:
			fmt.Fprintf(b, "%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\"",
				prefix, html.EscapeString(n.URL), n.AddedAt)
			if n.IconRef != "" {
				fmt.Fprintf(b, " ICON=\"%s\"", html.EscapeString(n.IconRef))
			}
			fmt.Fprintf(b, ">%s</A>\n", html.EscapeString(n.Title))
		}
	}
}
