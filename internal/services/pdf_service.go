package services

import (
	"bytes"
	"fmt"
	"idea-research/internal/models"
	"idea-research/internal/utils"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
)

const (
	pageLeft    = 15.0
	pageWidth   = 180.0
	boxPadding  = 8.0
	lineHeight  = 5.0
	pageBreakAt = 260.0
)

// PDFService renders completed strategies as PDF reports
type PDFService struct{}

// NewPDFService creates a new PDF service
func NewPDFService() *PDFService {
	return &PDFService{}
}

// GenerateStrategyPDF renders a completed strategy's insights, options and next steps
func (s *PDFService) GenerateStrategyPDF(strategy *models.Strategy) ([]byte, error) {
	if strategy == nil || strategy.Status != models.SessionStatusCompleted {
		return nil, fmt.Errorf("invalid strategy data")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageLeft, 20, pageLeft)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(108, 117, 125)
		pdf.SetX(pageLeft)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	// Title page
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 102, 204)
	pdf.MultiCell(0, 10, tr(strategy.Title), "", "C", false)

	pdf.Ln(4)
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(108, 117, 125)
	generated := strategy.CreatedAt
	if strategy.CompletedAt != nil {
		generated = *strategy.CompletedAt
	}
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", utils.FormatDate(generated)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Approach: %s  |  Confidence: %.0f%%  |  Completeness: %.0f%%",
		approachDescriptions[strategy.Approach].Title, strategy.AnalysisConfidence*100, strategy.AnalysisCompleteness),
		"", 1, "C", false, 0, "")

	s.addHeader(pdf, "The Idea")
	s.addTextBox(pdf, tr, strategy.IdeaTitle, strategy.IdeaDescription)

	if len(strategy.Insights) > 0 {
		s.addHeader(pdf, "Research Insights")
		for _, insight := range strategy.Insights {
			title := insight.Title
			if title == "" {
				title = phaseLabel(insight.Phase)
			}
			s.addTextBox(pdf, tr, fmt.Sprintf("%s (%.0f%% confidence)", title, insight.ConfidenceScore*100), insight.Content)
		}
	}

	if len(strategy.Options) > 0 {
		pdf.AddPage()
		s.addHeader(pdf, "Strategic Options")
		s.addOptionsTable(pdf, tr, strategy.Options)
		for _, option := range strategy.Options {
			s.addOption(pdf, tr, option)
		}
	}

	if len(strategy.NextSteps) > 0 {
		s.addHeader(pdf, "Next Steps")
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(33, 37, 41)
		for i, step := range strategy.NextSteps {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, step)), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *PDFService) addHeader(pdf *gofpdf.Fpdf, title string) {
	if pdf.GetY() > pageBreakAt {
		pdf.AddPage()
	}
	pdf.Ln(8)
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.CellFormat(0, 10, title, "", 0, "L", false, 0, "")

	pdf.Ln(10)
	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(0, 102, 204)
	pdf.Line(pageLeft, pdf.GetY(), pageLeft+pageWidth, pdf.GetY())
	pdf.Ln(6)
}

// addTextBox draws a shaded box with a bold heading and wrapped body text
func (s *PDFService) addTextBox(pdf *gofpdf.Fpdf, tr func(string) string, heading, body string) {
	textWidth := pageWidth - boxPadding*2

	pdf.SetFont("Arial", "", 9)
	lines := pdf.SplitText(body, textWidth)
	boxHeight := float64(len(lines))*lineHeight + 16

	if pdf.GetY()+boxHeight > pageBreakAt+15 {
		pdf.AddPage()
	}

	pdf.SetFillColor(248, 249, 250)
	pdf.SetDrawColor(0, 102, 204)
	pdf.SetLineWidth(0.3)
	startY := pdf.GetY()
	pdf.Rect(pageLeft, startY, pageWidth, boxHeight, "FD")

	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetXY(pageLeft+boxPadding, startY+4)
	pdf.CellFormat(textWidth, 6, tr(heading), "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(73, 80, 87)
	currentY := startY + 11
	for _, line := range lines {
		pdf.SetXY(pageLeft+boxPadding, currentY)
		pdf.CellFormat(textWidth, lineHeight, tr(strings.TrimSpace(line)), "", 0, "L", false, 0, "")
		currentY += lineHeight
	}

	pdf.SetY(startY + boxHeight)
	pdf.Ln(5)
}

// addOptionsTable adds a comparison table of all options
func (s *PDFService) addOptionsTable(pdf *gofpdf.Fpdf, tr func(string) string, options []models.ResearchOption) {
	col1Width := 90.0
	col2Width := 30.0
	col3Width := 30.0
	col4Width := 30.0
	rowHeight := 7.0

	pdf.SetFillColor(0, 102, 204)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(col1Width, rowHeight, "Option", "1", 0, "L", true, 0, "")
	pdf.CellFormat(col2Width, rowHeight, "Score", "1", 0, "R", true, 0, "")
	pdf.CellFormat(col3Width, rowHeight, "Success", "1", 0, "R", true, 0, "")
	pdf.CellFormat(col4Width, rowHeight, "To market", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(33, 37, 41)
	for i, option := range options {
		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(248, 249, 250)
		}
		title := option.Title
		if option.IsRecommended {
			title += " *"
		}
		pdf.CellFormat(col1Width, rowHeight, tr(title), "1", 0, "L", true, 0, "")
		pdf.CellFormat(col2Width, rowHeight, fmt.Sprintf("%.1f", option.OverallScore), "1", 0, "R", true, 0, "")
		pdf.CellFormat(col3Width, rowHeight, fmt.Sprintf("%.0f%%", option.SuccessProbabilityPercent), "1", 0, "R", true, 0, "")
		pdf.CellFormat(col4Width, rowHeight, fmt.Sprintf("%d mo", option.TimelineToMarketMonths), "1", 1, "R", true, 0, "")
	}

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(108, 117, 125)
	pdf.CellFormat(0, 6, "* recommended", "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (s *PDFService) addOption(pdf *gofpdf.Fpdf, tr func(string) string, option models.ResearchOption) {
	var body strings.Builder
	body.WriteString(option.Description)
	if option.TargetSegment != "" {
		fmt.Fprintf(&body, "\nTarget segment: %s", option.TargetSegment)
	}
	if option.ValueProposition != "" {
		fmt.Fprintf(&body, "\nValue proposition: %s", option.ValueProposition)
	}
	if option.GoToMarketStrategy != "" {
		fmt.Fprintf(&body, "\nGo-to-market: %s", option.GoToMarketStrategy)
	}
	if option.EstimatedInvestmentUSD > 0 {
		fmt.Fprintf(&body, "\nEstimated investment: $%.0f", option.EstimatedInvestmentUSD)
	}
	if len(option.RiskFactors) > 0 {
		fmt.Fprintf(&body, "\nRisks: %s", strings.Join(option.RiskFactors, "; "))
	}
	if len(option.MitigationStrategies) > 0 {
		fmt.Fprintf(&body, "\nMitigations: %s", strings.Join(option.MitigationStrategies, "; "))
	}

	heading := option.Title
	if option.IsRecommended {
		heading = "Recommended: " + heading
	}
	s.addTextBox(pdf, tr, heading, body.String())
}

// phaseLabel turns a phase name like market_context into "Market Context"
func phaseLabel(phase string) string {
	words := strings.Split(phase, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}
