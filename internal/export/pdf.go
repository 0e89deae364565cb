package export

import (
	"bytes"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/IshaanNene/NovelGoat/internal/media"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Cover box on the title page, in mm.
const (
	coverMaxW = 110.0
	coverMaxH = 150.0
	pageW     = 210.0
)

// PDFExporter writes an A4 PDF with a title page and one chapter per page.
// Text goes through the cp1252 translator of the core fonts.
type PDFExporter struct {
	Cover *media.Image
}

func (e *PDFExporter) setCover(img *media.Image) { e.Cover = img }

func (e *PDFExporter) Format() string    { return "pdf" }
func (e *PDFExporter) Extension() string { return ".pdf" }

func (e *PDFExporter) Export(w io.Writer, novel *types.Novel, chapters []*types.Chapter) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(novel.Title, true)
	if novel.Author != "" {
		pdf.SetAuthor(novel.Author, true)
	}
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	if !e.drawCover(pdf) {
		pdf.Ln(60)
	}
	pdf.SetFont("Helvetica", "B", 24)
	pdf.MultiCell(0, 12, tr(novel.Title), "", "C", false)
	if novel.Author != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 14)
		pdf.CellFormat(0, 8, tr(novel.Author), "", 1, "C", false, 0, "")
	}

	for _, ch := range withContent(chapters) {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 9, tr(chapterHeading(ch)), "", "L", false)
		pdf.Ln(4)

		pdf.SetFont("Times", "", 12)
		for _, p := range paragraphs(ch.Content) {
			pdf.MultiCell(0, 6, tr(p), "", "J", false)
			pdf.Ln(3)
		}
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

// drawCover places the cover at the top of the title page and moves the
// cursor below it. An image fpdf cannot read is skipped.
func (e *PDFExporter) drawCover(pdf *fpdf.Fpdf) bool {
	img := e.Cover
	if img == nil || img.Width == 0 || img.Height == 0 {
		return false
	}

	imageType := map[string]string{
		"image/jpeg": "JPG",
		"image/png":  "PNG",
		"image/gif":  "GIF",
	}[img.ContentType]
	if imageType == "" {
		return false
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	info := pdf.RegisterImageOptionsReader("cover", opts, bytes.NewReader(img.Data))
	if !pdf.Ok() || info == nil {
		pdf.ClearError()
		return false
	}

	w := coverMaxW
	h := w * float64(img.Height) / float64(img.Width)
	if h > coverMaxH {
		h = coverMaxH
		w = h * float64(img.Width) / float64(img.Height)
	}
	x, y := (pageW-w)/2, pdf.GetY()
	pdf.ImageOptions("cover", x, y, w, h, false, opts, 0, "")
	pdf.SetY(y + h + 10)
	return true
}
