package export

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

// TXTExporter writes a plain-text book.
type TXTExporter struct{}

func (e *TXTExporter) Format() string    { return "txt" }
func (e *TXTExporter) Extension() string { return ".txt" }

func (e *TXTExporter) Export(w io.Writer, novel *types.Novel, chapters []*types.Chapter) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(novel.Title + "\n")
	bw.WriteString(strings.Repeat("=", 60) + "\n\n")
	if novel.Author != "" {
		bw.WriteString("Author: " + novel.Author + "\n\n")
	}

	for _, ch := range withContent(chapters) {
		bw.WriteString(chapterHeading(ch) + "\n")
		bw.WriteString(strings.Repeat("-", 40) + "\n\n")
		bw.WriteString(ch.Content)
		bw.WriteString("\n\n\n")
	}

	return bw.Flush()
}

// JSONExporter writes the novel metadata and chapters as JSON.
type JSONExporter struct{}

func (e *JSONExporter) Format() string    { return "json" }
func (e *JSONExporter) Extension() string { return ".json" }

func (e *JSONExporter) Export(w io.Writer, novel *types.Novel, chapters []*types.Chapter) error {
	out := *novel
	out.Chapters = withContent(chapters)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
