package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marksync/internal/ir"
)

func TestNetscape_Read(t *testing.T) {
	res, err := NewNetscape("testdata/bookmarks.html").Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ir.NormalizedRecord{
		{URL: "https://example.com/", Title: "Example", Folder: "Root"},
		{URL: "https://go.dev/", Title: "The Go Programming Language", Folder: "Bookmarks Toolbar"},
		{URL: "https://pkg.go.dev/", Title: "Go Packages & Modules", Folder: "Bookmarks Toolbar > Dev"},
		{URL: "https://github.com/", Title: "GitHub", Folder: "Bookmarks Toolbar > Dev"},
		{URL: "https://cafe\u0301.example/", Title: "Caf\u00e9", Folder: "Root"},
	}, res.Records)
	assert.Equal(t, ir.SourceMetadata{SourceTotal: 7, Filtered: 1, Invalid: 1}, res.Metadata)
	assert.True(t, res.Metadata.Consistent(len(res.Records)))
}

func TestParseNetscape_NestedFolders(t *testing.T) {
	doc := `<DL><p>
<DT><H3>A</H3>
<DL><p>
  <DT><H3>B</H3>
  <DL><p>
    <DT><H3>C</H3>
    <DL><p>
      <DT><A HREF="https://deep.example/">Deep</A>
    </DL><p>
  </DL><p>
  <DT><A HREF="https://a.example/">Shallow</A>
</DL><p>
</DL>`

	res, err := ParseNetscape(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "A > B > C", res.Records[0].Folder)
	assert.Equal(t, "A", res.Records[1].Folder)
}

func TestParseNetscape_HeadingWithoutList(t *testing.T) {
	doc := `<DL><p>
<DT><H3>Orphan</H3>
<DT><A HREF="https://a.example/">A</A>
</DL>`

	res, err := ParseNetscape(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, RootFolder, res.Records[0].Folder)
}

func TestParseNetscape_Empty(t *testing.T) {
	res, err := ParseNetscape(context.Background(), strings.NewReader(""))
	require.NoError(t, err)

	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
	assert.Equal(t, ir.SourceMetadata{}, res.Metadata)
}

func TestParseNetscape_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseNetscape(ctx, strings.NewReader(`<DL><DT><A HREF="https://a.example/">A</A></DL>`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNetscape_MissingFile(t *testing.T) {
	_, err := NewNetscape("testdata/nope.html").Read(context.Background())
	assert.Error(t, err)
}
