package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"idea-research/internal/config"
	"idea-research/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ReportMailer delivers a finished strategy report
type ReportMailer interface {
	SendStrategyReport(toEmail string, strategy *models.Strategy, reportURL string, pdfData []byte) error
}

// EmailService handles email sending via SendGrid
type EmailService struct {
	fromEmail string
	fromName  string
	client    *sendgrid.Client
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig) *EmailService {
	return &EmailService{
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		client:    sendgrid.NewSendClient(cfg.APIKey),
	}
}

// SendStrategyReport emails the strategy summary with the PDF attached
func (s *EmailService) SendStrategyReport(toEmail string, strategy *models.Strategy, reportURL string, pdfData []byte) error {
	message := s.buildStrategyReportMessage(toEmail, strategy, reportURL, pdfData)

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return nil
}

func (s *EmailService) buildStrategyReportMessage(toEmail string, strategy *models.Strategy, reportURL string, pdfData []byte) *mail.SGMailV3 {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", toEmail)
	subject := fmt.Sprintf("Your research is ready - %s", strategy.IdeaTitle)

	message := mail.NewSingleEmail(from, subject, to,
		buildStrategyEmailText(strategy, reportURL),
		buildStrategyEmailHTML(strategy, reportURL))

	if len(pdfData) > 0 {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(pdfData))
		attachment.SetType("application/pdf")
		attachment.SetFilename(fmt.Sprintf("strategy-%s.pdf", strategy.ID))
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	return message
}

func buildStrategyEmailHTML(strategy *models.Strategy, reportURL string) string {
	var body bytes.Buffer

	body.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0066cc; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background-color: #f8f9fa; padding: 20px; border-radius: 0 0 8px 8px; }
        .summary-box { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; border-left: 4px solid #0066cc; }
        .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="header">
        <h1 style="margin: 0;">` + html.EscapeString(strategy.Title) + `</h1>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p>The research for <strong>` + html.EscapeString(strategy.IdeaTitle) + `</strong> has finished.</p>`)

	if recommended := strategy.RecommendedOption(); recommended != nil {
		fmt.Fprintf(&body, `
        <div class="summary-box">
            <h3 style="margin-top: 0; color: #0066cc;">Recommended: %s</h3>
            <p>%s</p>
            <p>Score %.1f / 10, %.0f%% estimated success probability.</p>
        </div>`, html.EscapeString(recommended.Title), html.EscapeString(recommended.Description),
			recommended.OverallScore, recommended.SuccessProbabilityPercent)
	}

	if reportURL != "" {
		body.WriteString(`
        <p><a href="` + html.EscapeString(reportURL) + `">Download the report</a></p>`)
	}

	body.WriteString(`
        <p>The complete report is attached as a PDF document.</p>
    </div>
    <div class="footer">
        <p>This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>`)

	return body.String()
}

func buildStrategyEmailText(strategy *models.Strategy, reportURL string) string {
	var text bytes.Buffer

	fmt.Fprintf(&text, "%s\n\nHello,\n\nThe research for %s has finished.\n\n", strategy.Title, strategy.IdeaTitle)

	if recommended := strategy.RecommendedOption(); recommended != nil {
		fmt.Fprintf(&text, "Recommended: %s\n%s\n\n", recommended.Title, recommended.Description)
	}
	if len(strategy.NextSteps) > 0 {
		text.WriteString("Next steps:\n")
		for i, step := range strategy.NextSteps {
			fmt.Fprintf(&text, "%d. %s\n", i+1, step)
		}
		text.WriteString("\n")
	}
	if reportURL != "" {
		fmt.Fprintf(&text, "Report: %s\n\n", reportURL)
	}

	text.WriteString(`The complete report is attached as a PDF document.

---
This is an automated email. Please do not reply.`)

	return text.String()
}
