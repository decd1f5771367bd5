package source

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/marksync/internal/ir"
)

// FolderSeparator joins folder names into a denormalized path.
const FolderSeparator = " > "

// RootFolder is the folder of bookmarks that sit outside any folder in a
// Netscape export.
const RootFolder = "Root"

// Untitled replaces empty Firefox titles.
const Untitled = "No Title"

// Result is the output of a Reader.
type Result struct {
	Records  []ir.NormalizedRecord
	Metadata ir.SourceMetadata
}

// Reader produces normalized records from one browser store.
type Reader interface {
	Family() ir.SourceFamily
	Read(ctx context.Context) (Result, error)
}

// New returns the reader for family over path. opts apply to the Firefox
// reader only.
func New(family ir.SourceFamily, path string, opts ...FirefoxOption) (Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%s source: path is required", family)
	}
	switch family {
	case ir.FamilyFirefox:
		return NewFirefox(path, opts...), nil
	case ir.FamilyChrome:
		return NewChrome(path), nil
	case ir.FamilyHTML:
		return NewNetscape(path), nil
	}
	return nil, fmt.Errorf("%w: %q", ir.ErrUnknownFamily, family)
}

var strict = bluemonday.StrictPolicy()

// cleanText strips markup, NFC-normalizes, and collapses whitespace.
// StrictPolicy escapes what it keeps, so the result is unescaped again.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<>") {
		s = html.UnescapeString(strict.Sanitize(s))
	}
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func joinFolder(stack []string) string {
	return strings.Join(stack, FolderSeparator)
}

// filtered reports URLs that are not bookmarks of a page: Firefox smart
// folders and saved queries.
func filtered(url string) bool {
	return strings.HasPrefix(url, "place:")
}

type tally struct {
	records []ir.NormalizedRecord
	meta    ir.SourceMetadata
}

// add counts one bookmark entry and keeps it when it has a usable URL.
func (t *tally) add(url, title, folder, tag string) {
	t.meta.SourceTotal++
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		t.meta.Invalid++
	case filtered(url):
		t.meta.Filtered++
	default:
		t.records = append(t.records, ir.NormalizedRecord{
			URL:       url,
			Title:     title,
			Folder:    folder,
			SourceTag: tag,
		})
	}
}

func (t *tally) result() Result {
	records := t.records
	if records == nil {
		records = []ir.NormalizedRecord{}
	}
	return Result{Records: records, Metadata: t.meta}
}
