package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
)

func WriteServiceTable(w io.Writer, services []client.ServiceSummary) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tACCOUNT\tREGION\tSTATUS\tUPDATED")
	for _, s := range services {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Type, s.AccountName, orDash(s.Region), formatStatus(s.Suspended), formatTime(s.UpdatedAt))
	}
	_ = tw.Flush()
}

func WriteServiceTableWide(w io.Writer, services []client.ServiceSummary) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tTYPE\tACCOUNT\tREGION\tPLAN\tENVIRONMENT\tSTATUS\tUPDATED\tURL")
	for _, s := range services {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Type, s.AccountName, orDash(s.Region), orDash(s.Plan), orDash(s.Environment),
			formatStatus(s.Suspended), formatTime(s.UpdatedAt), orDash(s.ServiceURL))
	}
	_ = tw.Flush()
}

func WriteAccountTable(w io.Writer, accounts []client.Account) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME")
	for _, a := range accounts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", a.ID, a.Name)
	}
	_ = tw.Flush()
}

func WriteEnvVarTable(w io.Writer, vars []client.EnvVar) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tVALUE")
	for _, v := range vars {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", v.Key, v.Value)
	}
	_ = tw.Flush()
}

func WriteEventTable(w io.Writer, events []client.Event) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIMESTAMP\tTYPE\tID")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", formatTime(e.Timestamp), e.Type, e.ID)
	}
	_ = tw.Flush()
}

func WriteDeployTable(w io.Writer, deploys []client.Deploy) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tTRIGGER\tCREATED")
	for _, d := range deploys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, orDash(d.Status), orDash(d.Trigger), formatTime(d.CreatedAt))
	}
	_ = tw.Flush()
}

// formatStatus collapses the upstream suspended marker into a short
// active/suspended column.
func formatStatus(suspended string) string {
	if suspended == "suspended" {
		return "suspended"
	}
	return "active"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
