package assembly

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

// RendererOptions configures the PDF renderer.
type RendererOptions struct {
	PageSize      string  `json:"page_size"` // Letter, Legal, A4
	FontFamily    string  `json:"font_family"`
	FontSize      float64 `json:"font_size"`
	TitleFontSize float64 `json:"title_font_size"`
	MarginLeft    float64 `json:"margin_left"`
	MarginRight   float64 `json:"margin_right"`
	MarginTop     float64 `json:"margin_top"`
	MarginBottom  float64 `json:"margin_bottom"`
}

// DefaultRendererOptions returns the filing defaults: US Letter, plain Arial.
func DefaultRendererOptions() RendererOptions {
	return RendererOptions{
		PageSize:      "Letter",
		FontFamily:    "Arial",
		FontSize:      11,
		TitleFontSize: 16,
		MarginLeft:    20,
		MarginRight:   20,
		MarginTop:     25,
		MarginBottom:  25,
	}
}

// pdfRenderer produces the combined packet document: a cover sheet, a table
// of contents with per-form page ranges, and a divider sheet per form.
type pdfRenderer struct {
	options RendererOptions
}

// NewPDFRenderer builds the gofpdf-backed packet renderer.
func NewPDFRenderer(options RendererOptions) Renderer {
	if options.PageSize == "" {
		options = DefaultRendererOptions()
	}
	return &pdfRenderer{options: options}
}

func (r *pdfRenderer) Render(ctx context.Context, packet []PacketForm, meta PacketMetadata) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", r.options.PageSize, "")
	pdf.SetMargins(r.options.MarginLeft, r.options.MarginTop, r.options.MarginRight)
	pdf.SetAutoPageBreak(true, r.options.MarginBottom)
	pdf.SetTitle(GeneratePacketFilename(meta, meta.CreatedAt), false)
	pdf.SetAuthor(meta.PetitionerName, false)
	pdf.SetCreator("tro-packet-engine", false)
	pdf.AliasNbPages("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(r.options.FontFamily, "", r.options.FontSize-2)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	r.addCoverSheet(pdf, meta)
	r.addTableOfContents(pdf, packet)
	for _, form := range packet {
		r.addFormDivider(pdf, form)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *pdfRenderer) addCoverSheet(pdf *gofpdf.Fpdf, meta PacketMetadata) {
	pdf.AddPage()
	pdf.SetFont(r.options.FontFamily, "B", r.options.TitleFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, "Domestic Violence Restraining Order Packet", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont(r.options.FontFamily, "", r.options.FontSize)
	caseNumber := meta.CaseNumber
	if caseNumber == "" {
		caseNumber = "(not yet assigned)"
	}
	rows := [][2]string{
		{"Case Number", caseNumber},
		{"Petitioner", meta.PetitionerName},
		{"Respondent", meta.RespondentName},
		{"County", meta.County},
		{"Packet Type", string(meta.PacketType)},
	}
	for _, row := range rows {
		pdf.SetFont(r.options.FontFamily, "B", r.options.FontSize)
		pdf.CellFormat(50, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont(r.options.FontFamily, "", r.options.FontSize)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont(r.options.FontFamily, "", r.options.FontSize-2)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, fmt.Sprintf("Assembled %s", meta.CreatedAt.Format("January 2, 2006")), "", 1, "L", false, 0, "")
}

func (r *pdfRenderer) addTableOfContents(pdf *gofpdf.Fpdf, packet []PacketForm) {
	pdf.AddPage()
	pdf.SetFont(r.options.FontFamily, "B", r.options.TitleFontSize-2)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, "Contents", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(r.options.FontFamily, "", r.options.FontSize)
	for _, form := range packet {
		pages := fmt.Sprintf("%d-%d", form.StartPage, form.EndPage)
		if form.PageCount == 0 {
			pages = "-"
		} else if form.StartPage == form.EndPage {
			pages = fmt.Sprintf("%d", form.StartPage)
		}
		pdf.CellFormat(30, 8, string(form.FormType), "", 0, "L", false, 0, "")
		pdf.CellFormat(120, 8, forms.DisplayName(form.FormType), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, pages, "", 1, "R", false, 0, "")
	}
}

func (r *pdfRenderer) addFormDivider(pdf *gofpdf.Fpdf, form PacketForm) {
	pdf.AddPage()
	pdf.SetFont(r.options.FontFamily, "B", r.options.TitleFontSize-2)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, string(form.FormType), "", 1, "L", false, 0, "")

	pdf.SetFont(r.options.FontFamily, "", r.options.FontSize)
	pdf.CellFormat(0, 8, forms.DisplayName(form.FormType), "", 1, "L", false, 0, "")
	if form.PageCount > 0 {
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, fmt.Sprintf("Pages %d through %d", form.StartPage, form.EndPage), "", 1, "L", false, 0, "")
	}
}
