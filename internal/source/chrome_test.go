package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marksync/internal/ir"
)

func TestChrome_Read(t *testing.T) {
	res, err := NewChrome("testdata/Bookmarks").Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ir.NormalizedRecord{
		{URL: "https://go.dev/", Title: "Go", Folder: "Bookmarks bar", SourceTag: "0a000000-0000-4000-a000-000000000001"},
		{URL: "https://go-chi.io/", Title: "Chi", Folder: "Bookmarks bar > Dev", SourceTag: "0a000000-0000-4000-a000-000000000002"},
		{URL: "https://example.com/", Title: "", Folder: "Other bookmarks", SourceTag: "0a000000-0000-4000-a000-000000000004"},
		{URL: "https://go.dev/", Title: "Go", Folder: "Mobile bookmarks", SourceTag: "0a000000-0000-4000-a000-000000000006"},
	}, res.Records)
	assert.Equal(t, ir.SourceMetadata{SourceTotal: 5, Invalid: 1}, res.Metadata)
}

func TestParseChrome_RootOrder(t *testing.T) {
	data := []byte(`{"roots": {
		"zzz": {"type": "folder", "name": "Z", "children": [{"type": "url", "name": "z", "url": "https://z.example/"}]},
		"synced": {"type": "folder", "name": "Mobile", "children": [{"type": "url", "name": "m", "url": "https://m.example/"}]},
		"aaa": {"type": "folder", "name": "A", "children": [{"type": "url", "name": "a", "url": "https://a.example/"}]},
		"bookmark_bar": {"type": "folder", "name": "Bar", "children": [{"type": "url", "name": "b", "url": "https://b.example/"}]},
		"sync_transaction_version": "12"
	}}`)

	res, err := ParseChrome(context.Background(), data)
	require.NoError(t, err)

	var folders []string
	for _, r := range res.Records {
		folders = append(folders, r.Folder)
	}
	assert.Equal(t, []string{"Bar", "Mobile", "A", "Z"}, folders)
}

func TestParseChrome_Errors(t *testing.T) {
	_, err := ParseChrome(context.Background(), []byte(`not json`))
	assert.Error(t, err)

	_, err = ParseChrome(context.Background(), []byte(`{"version": 1}`))
	assert.Error(t, err)
}

func TestChrome_MissingFile(t *testing.T) {
	_, err := NewChrome("testdata/Missing").Read(context.Background())
	assert.Error(t, err)
}
