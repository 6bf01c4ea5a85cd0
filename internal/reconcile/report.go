package reconcile

import (
	"bytes"
	"encoding/json"
	"html/template"
	"time"

	"github.com/google/uuid"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
)

type Mode string

const (
	ModeAnalyze Mode = "analyze"
	ModeSync    Mode = "sync"
)

func (m Mode) Valid() bool { return m == ModeAnalyze || m == ModeSync }

type AccountReport struct {
	AccountID         uuid.UUID                 `json:"account_id"`
	Username          string                    `json:"username"`
	Email             string                    `json:"email"`
	CustomerID        string                    `json:"customer_id"`
	DBStatus          db_models.AccountStatus   `json:"db_status"`
	DBPaid            bool                      `json:"db_paid_for_current_month"`
	DBSubscriptionEnd *time.Time                `json:"db_subscription_end,omitempty"`
	Stripe            payments.StatusDescriptor `json:"stripe"`
	Discrepancies     []string                  `json:"discrepancies"`
}

type UnmatchedAccount struct {
	AccountID  uuid.UUID `json:"account_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	CustomerID string    `json:"customer_id,omitempty"`
	Reason     string    `json:"reason"`
}

type UnmatchedCustomer struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

type ResolverError struct {
	Username   string `json:"username"`
	CustomerID string `json:"customer_id"`
	Error      string `json:"error"`
}

// Report is the outcome of an analysis. Everything except GeneratedAt is a pure function of the
// store and the processor, so two analyses without external change encode identically.
type Report struct {
	GeneratedAt        time.Time           `json:"-"`
	TotalAccounts      int                 `json:"total_accounts"`
	TotalCustomers     int                 `json:"total_customers"`
	Matched            []AccountReport     `json:"matched"`
	UnmatchedAccounts  []UnmatchedAccount  `json:"unmatched_accounts"`
	UnmatchedCustomers []UnmatchedCustomer `json:"unmatched_customers"`
	ResolverErrors     []ResolverError     `json:"resolver_errors"`
	Recommendations    []string            `json:"recommendations"`
}

// Discrepant returns matched accounts with at least one discrepancy.
func (r *Report) Discrepant() []AccountReport {
	var out []AccountReport
	for _, a := range r.Matched {
		if len(a.Discrepancies) > 0 {
			out = append(out, a)
		}
	}
	return out
}

func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

type SyncEntry struct {
	AccountID          uuid.UUID               `json:"account_id"`
	Username           string                  `json:"username"`
	Email              string                  `json:"email"`
	Action             string                  `json:"action"`
	OldStatus          db_models.AccountStatus `json:"old_status"`
	NewStatus          db_models.AccountStatus `json:"new_status"`
	OldPaid            bool                    `json:"old_paid"`
	NewPaid            bool                    `json:"new_paid"`
	OldSubscriptionEnd *time.Time              `json:"old_subscription_end,omitempty"`
	NewSubscriptionEnd *time.Time              `json:"new_subscription_end,omitempty"`
}

type SyncResult struct {
	Processed int         `json:"processed"`
	Updated   int         `json:"updated"`
	Entries   []SyncEntry `json:"entries"`
	Errors    []string    `json:"errors"`
}

func (s *SyncResult) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

var funcs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return "none"
		}
		return t.UTC().Format("2006-01-02")
	},
}

var analysisTpl = template.Must(template.New("analysis").Funcs(funcs).Parse(`<h2>{{.Title}}</h2>
<p>Generated {{.Report.GeneratedAt.UTC.Format "2006-01-02 15:04 MST"}}</p>
<ul>
  <li><strong>Accounts:</strong> {{.Report.TotalAccounts}}</li>
  <li><strong>Stripe customers:</strong> {{.Report.TotalCustomers}}</li>
  <li><strong>Discrepancies found:</strong> {{len .Discrepant}}</li>
  <li><strong>Unmatched accounts:</strong> {{len .Report.UnmatchedAccounts}}</li>
  <li><strong>Unmatched customers:</strong> {{len .Report.UnmatchedCustomers}}</li>
</ul>
{{if .Discrepant}}<h3>Discrepancies</h3>
{{range .Discrepant}}<h4>{{.Username}} ({{.Email}})</h4>
<ul>{{range .Discrepancies}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{end}}
{{if .Report.UnmatchedAccounts}}<h3>Accounts without a Stripe match</h3>
<ul>{{range .Report.UnmatchedAccounts}}<li>{{.Username}} ({{.Email}}): {{.Reason}}</li>{{end}}</ul>
{{end}}
{{if .Report.UnmatchedCustomers}}<h3>Stripe customers without an account</h3>
<ul>{{range .Report.UnmatchedCustomers}}<li>{{.CustomerID}} {{.Email}} {{.Name}}</li>{{end}}</ul>
{{end}}
{{if .Report.ResolverErrors}}<h3>Lookup errors</h3>
<ul>{{range .Report.ResolverErrors}}<li>{{.Username}} ({{.CustomerID}}): {{.Error}}</li>{{end}}</ul>
{{end}}
{{if .Report.Recommendations}}<h3>Recommendations</h3>
<ul>{{range .Report.Recommendations}}<li>{{.}}</li>{{end}}</ul>
{{end}}`))

var syncTpl = template.Must(template.New("sync").Funcs(funcs).Parse(`<h2>{{.Title}}</h2>
<ul>
  <li><strong>Processed:</strong> {{.Result.Processed}}</li>
  <li><strong>Updated:</strong> {{.Result.Updated}}</li>
  <li><strong>Errors:</strong> {{len .Result.Errors}}</li>
</ul>
{{if .Result.Entries}}<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Account</th><th>Action</th><th>Status</th><th>Paid</th><th>Subscription end</th></tr>
{{range .Result.Entries}}<tr><td>{{.Username}}</td><td>{{.Action}}</td><td>{{.OldStatus}} &rarr; {{.NewStatus}}</td><td>{{.OldPaid}} &rarr; {{.NewPaid}}</td><td>{{date .OldSubscriptionEnd}} &rarr; {{date .NewSubscriptionEnd}}</td></tr>
{{end}}</table>{{end}}
{{if .Result.Errors}}<h3>Errors</h3><ul>{{range .Result.Errors}}<li>{{.}}</li>{{end}}</ul>{{end}}`))

// AnalysisHTML renders a report as the body of an admin email.
func AnalysisHTML(title string, r *Report) (string, error) {
	var buf bytes.Buffer
	err := analysisTpl.Execute(&buf, struct {
		Title      string
		Report     *Report
		Discrepant []AccountReport
	}{title, r, r.Discrepant()})
	return buf.String(), err
}

func SyncHTML(title string, s *SyncResult) (string, error) {
	var buf bytes.Buffer
	err := syncTpl.Execute(&buf, struct {
		Title  string
		Result *SyncResult
	}{title, s})
	return buf.String(), err
}
