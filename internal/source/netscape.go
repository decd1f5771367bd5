package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roach88/marksync/internal/ir"
)

// Netscape reads a Netscape bookmark HTML export, the format every major
// browser writes from its "Export bookmarks" menu.
//
// Folder names come from <H3> headings. The <DL> that follows a heading
// holds that folder's entries. Entries outside any folder get RootFolder.
type Netscape struct {
	path string
}

// NewNetscape returns a reader for the export at path.
func NewNetscape(path string) *Netscape {
	return &Netscape{path: path}
}

// Family implements Reader.
func (n *Netscape) Family() ir.SourceFamily { return ir.FamilyHTML }

// Read implements Reader.
func (n *Netscape) Read(ctx context.Context) (Result, error) {
	f, err := os.Open(n.path)
	if err != nil {
		return Result{}, fmt.Errorf("open bookmarks export: %w", err)
	}
	defer f.Close()

	res, err := ParseNetscape(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", n.path, err)
	}
	return res, nil
}

// ParseNetscape parses a Netscape bookmark document.
//
// The tokenizer is used instead of the tree builder: exports are rarely
// well-formed, and only the H3/DL/A sequence matters.
func ParseNetscape(ctx context.Context, r io.Reader) (Result, error) {
	z := html.NewTokenizer(r)

	var t tally
	var folders []string
	// One entry per open <DL>: whether it pushed a folder name.
	var lists []bool
	var pending *string

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return Result{}, err
			}
			return t.result(), nil

		case html.StartTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.H3:
				name := cleanText(readText(z, atom.H3))
				pending = &name

			case atom.Dl:
				if pending != nil {
					folders = append(folders, *pending)
					pending = nil
					lists = append(lists, true)
				} else {
					lists = append(lists, false)
				}

			case atom.A:
				if err := ctx.Err(); err != nil {
					return Result{}, err
				}
				// A heading without a list is an empty folder
				pending = nil
				href := attr(tok, "href")
				title := cleanText(readText(z, atom.A))
				folder := joinFolder(folders)
				if folder == "" {
					folder = RootFolder
				}
				t.add(href, title, folder, "")
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Dl || len(lists) == 0 {
				continue
			}
			pushed := lists[len(lists)-1]
			lists = lists[:len(lists)-1]
			if pushed && len(folders) > 0 {
				folders = folders[:len(folders)-1]
			}
		}
	}
}

// readText collects text up to the end tag of a. Nested markup is kept as
// raw text so cleanText can strip it.
func readText(z *html.Tokenizer, a atom.Atom) string {
	var sb strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom == a {
				return sb.String()
			}
			sb.WriteString(tok.String())
		default:
			sb.Write(z.Raw())
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
