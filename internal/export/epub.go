package export

import (
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/bmaupin/go-epub"
	"github.com/google/uuid"

	"github.com/IshaanNene/NovelGoat/internal/media"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// EPUBExporter writes an EPUB 3 book, one section per chapter.
type EPUBExporter struct {
	Cover *media.Image
}

func (e *EPUBExporter) setCover(img *media.Image) { e.Cover = img }

func (e *EPUBExporter) Format() string    { return "epub" }
func (e *EPUBExporter) Extension() string { return ".epub" }

const styleCSS = `body { font-family: serif; line-height: 1.5; margin: 0 5%; }
h1, h2 { text-align: center; }
p { text-indent: 1.5em; margin: 0 0 0.8em 0; }
`

func (e *EPUBExporter) Export(w io.Writer, novel *types.Novel, chapters []*types.Chapter) error {
	chapters = withContent(chapters)
	if len(chapters) == 0 {
		return types.ErrNoContent
	}

	book := epub.NewEpub(novel.Title)
	book.SetIdentifier("urn:uuid:" + uuid.NewString())
	book.SetLang("en")
	author := novel.Author
	if author == "" {
		author = "Unknown"
	}
	book.SetAuthor(author)
	if novel.Description != "" {
		book.SetDescription(novel.Description)
	}

	css, err := book.AddCSS(dataURI("text/css", []byte(styleCSS)), "style.css")
	if err != nil {
		return fmt.Errorf("add stylesheet: %w", err)
	}

	if e.Cover != nil {
		img, err := book.AddImage(dataURI(e.Cover.ContentType, e.Cover.Data), "cover"+e.Cover.Extension())
		if err != nil {
			return fmt.Errorf("add cover: %w", err)
		}
		book.SetCover(img, "")
	}

	for i, ch := range chapters {
		if _, err := book.AddSection(chapterBody(ch), chapterHeading(ch), chapterFile(i), css); err != nil {
			return fmt.Errorf("add chapter %d: %w", ch.Index+1, err)
		}
	}

	if _, err := book.WriteTo(w); err != nil {
		return fmt.Errorf("write epub: %w", err)
	}
	return nil
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func chapterFile(i int) string {
	return fmt.Sprintf("chap_%05d.xhtml", i+1)
}

func chapterBody(ch *types.Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(chapterHeading(ch)))
	for _, p := range paragraphs(ch.Content) {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(p))
	}
	return b.String()
}
