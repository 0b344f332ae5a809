package report

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/interfaces"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

const textBodyTemplate = `{{len .Entries}} HyperPay payment(s) are awaiting manual review (checked back to {{.Since.Format "2006-01-02 15:04 MST"}}).

{{range .Entries}}- transaction {{.TransactionID}} ({{.ProcessorName}}) order {{.OrderNumber}} code {{.ResultCode}} amount {{.Amount}} recorded {{.CreatedAt.Format "2006-01-02 15:04"}}
{{end}}
Review these in the HyperPay back office before the review window closes.
`

const htmlBodyTemplate = `<p>{{len .Entries}} HyperPay payment(s) are awaiting manual review (checked back to {{.Since.Format "2006-01-02 15:04 MST"}}).</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Transaction</th><th>Processor</th><th>Order</th><th>Result code</th><th>Amount</th><th>Recorded</th></tr>
{{range .Entries}}<tr><td>{{.TransactionID}}</td><td>{{.ProcessorName}}</td><td>{{.OrderNumber}}</td><td>{{.ResultCode}}</td><td>{{.Amount}}</td><td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td></tr>
{{end}}</table>
<p>Review these in the HyperPay back office before the review window closes.</p>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("report").Parse(textBodyTemplate))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("report").Parse(htmlBodyTemplate))
)

type Reporter struct {
	scanner *Scanner
	mailer  interfaces.MailSender
}

func NewReporter(scanner *Scanner, mailer interfaces.MailSender) *Reporter {
	return &Reporter{scanner: scanner, mailer: mailer}
}

type reportData struct {
	Entries []Entry
	Since   time.Time
}

// Run scans for manual-review payments recorded since the cutoff and mails
// the recipients when there are any. The count is always reported; mail goes
// out only for a non-empty result.
func (r *Reporter) Run(ctx context.Context, since time.Time, recipients []string) (int, error) {
	entries, err := r.scanner.Scan(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("scanning audit records: %w", err)
	}

	telemetry.Logger.Info("Manual review scan finished",
		zap.Int("pending_payments", len(entries)),
		zap.Time("since", since),
	)

	if len(entries) == 0 {
		return 0, nil
	}

	data := reportData{Entries: entries, Since: since}
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return len(entries), err
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return len(entries), err
	}

	subject := fmt.Sprintf("[HyperPay] %d payment(s) awaiting manual review", len(entries))
	if err := r.mailer.Send(recipients, subject, text.String(), html.String()); err != nil {
		return len(entries), fmt.Errorf("sending manual review report: %w", err)
	}

	telemetry.Logger.Info("Manual review report sent",
		zap.Int("pending_payments", len(entries)),
		zap.Strings("recipients", recipients),
	)
	return len(entries), nil
}
