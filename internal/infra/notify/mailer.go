package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/prasdika/temukan/internal/domain/analysis"
	"github.com/prasdika/temukan/internal/domain/cases"
	"github.com/prasdika/temukan/internal/infra/mail"
	"github.com/prasdika/temukan/internal/pkg/logger"
)

// Mailer implements the completion-notice port on top of the mail transport.
type Mailer struct {
	Sender  mail.Sender
	BaseURL string // app base URL for the deep link back to the case
	Log     *logger.Logger
}

func (m *Mailer) AnalysisComplete(ctx context.Context, email, caseTitle string, caseID cases.CaseID, out analysis.Outcome) error {
	subject := "Analysis Complete: " + caseTitle
	body := ComposeCompletionHTML(caseTitle, caseID, m.BaseURL, out)

	res, err := m.Sender.Send(ctx, email, subject, body)
	if err != nil {
		return err
	}
	if m.Log != nil {
		m.Log.Info("completion notice sent", "case_id", caseID, "message_id", res.MessageID)
	}
	return nil
}

// ComposeCompletionHTML renders the summary mail: status headline, detection
// counts, top confidence as a percentage and a deep link to the case page.
func ComposeCompletionHTML(caseTitle string, caseID cases.CaseID, baseURL string, out analysis.Outcome) string {
	headline := "No Matches Found"
	if out.Statistics.MatchesFound > 0 {
		headline = `<span style="color: green;">Potential Match Found</span>`
	}
	topConfidence := "N/A"
	if out.TopMatchConfidence > 0 {
		topConfidence = fmt.Sprintf("%.1f%%", out.TopMatchConfidence*100)
	}
	link := strings.TrimRight(baseURL, "/") + "/admin/cases/" + string(caseID)

	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">`)
	b.WriteString(`<h2>Analysis Complete</h2>`)
	fmt.Fprintf(&b, `<p>The analysis for your case <strong>%q</strong> (ID: %s) has been completed.</p>`,
		html.EscapeString(caseTitle), caseID)
	b.WriteString(`<div style="background-color: #f4f4f5; padding: 15px; border-radius: 8px; margin: 20px 0;">`)
	b.WriteString(`<h3 style="margin-top: 0;">Results Summary</h3><ul style="list-style: none; padding: 0;">`)
	fmt.Fprintf(&b, `<li><strong>Status:</strong> %s</li>`, headline)
	fmt.Fprintf(&b, `<li><strong>Total Detections:</strong> %d</li>`, out.Statistics.TotalDetections)
	fmt.Fprintf(&b, `<li><strong>Matches Found:</strong> %d</li>`, out.Statistics.MatchesFound)
	fmt.Fprintf(&b, `<li><strong>Top Match Confidence:</strong> %s</li>`, topConfidence)
	b.WriteString(`</ul></div>`)
	b.WriteString(`<p>Please log in to your dashboard to view the full detailed report and review the matches.</p>`)
	fmt.Fprintf(&b, `<a href="%s" style="display: inline-block; background-color: #2563eb; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">View Results</a>`, link)
	b.WriteString(`</div>`)
	return b.String()
}
