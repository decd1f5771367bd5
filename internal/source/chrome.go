package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/roach88/marksync/internal/ir"
)

// chromeRoots is the display order of Chrome's top-level folders. Unknown
// roots follow in name order.
var chromeRoots = []string{"bookmark_bar", "other", "synced"}

// Chrome reads Chrome's (or Chromium's) JSON Bookmarks file.
//
// Folder paths start at the root folder's display name, e.g.
// "Bookmarks bar > Dev".
type Chrome struct {
	path string
}

// NewChrome returns a reader for the Bookmarks file at path.
func NewChrome(path string) *Chrome {
	return &Chrome{path: path}
}

// Family implements Reader.
func (c *Chrome) Family() ir.SourceFamily { return ir.FamilyChrome }

type chromeFile struct {
	Roots map[string]json.RawMessage `json:"roots"`
}

type chromeNode struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	GUID     string       `json:"guid"`
	Children []chromeNode `json:"children"`
}

// Read implements Reader.
func (c *Chrome) Read(ctx context.Context) (Result, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Result{}, fmt.Errorf("read chrome bookmarks: %w", err)
	}
	res, err := ParseChrome(ctx, data)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return res, nil
}

// ParseChrome parses the contents of a Chrome Bookmarks file.
func ParseChrome(ctx context.Context, data []byte) (Result, error) {
	var file chromeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Result{}, err
	}
	if file.Roots == nil {
		return Result{}, fmt.Errorf("missing roots object")
	}

	var t tally
	for _, key := range rootOrder(file.Roots) {
		var root chromeNode
		// Non-folder entries under roots, such as sync_transaction_version
		// in older files, are skipped.
		if err := json.Unmarshal(file.Roots[key], &root); err != nil {
			continue
		}
		if err := walkChrome(ctx, &t, root, nil); err != nil {
			return Result{}, err
		}
	}
	return t.result(), nil
}

func rootOrder(roots map[string]json.RawMessage) []string {
	known := make(map[string]bool, len(chromeRoots))
	var keys []string
	for _, k := range chromeRoots {
		known[k] = true
		if _, ok := roots[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range roots {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func walkChrome(ctx context.Context, t *tally, n chromeNode, folders []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch n.Type {
	case "url":
		t.add(n.URL, cleanText(n.Name), joinFolder(folders), n.GUID)
	case "folder":
		path := folders
		if name := cleanText(n.Name); name != "" {
			path = append(append([]string(nil), folders...), name)
		}
		for _, child := range n.Children {
			if err := walkChrome(ctx, t, child, path); err != nil {
				return err
			}
		}
	}
	return nil
}
