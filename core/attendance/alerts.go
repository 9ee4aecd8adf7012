package attendance

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/wazoefu/mahudhurio/core"
)

// AlertMailer reports students whose attendance rate over a period fell
// below the configured threshold. Sending follows the mail service's
// fire-and-forget contract.
type AlertMailer struct {
	mailSvc   core.EmailService
	threshold float64
}

func NewAlertMailer(mailSvc core.EmailService, threshold float64) *AlertMailer {
	return &AlertMailer{mailSvc: mailSvc, threshold: threshold}
}

// ReportLowAttendance aggregates the record set per student and mails
// the flagged students to the recipient. It returns the flagged
// statistics so callers can render them without re-aggregating.
func (am *AlertMailer) ReportLowAttendance(records []Record, className string, to mail.Address) []StudentStatistics {
	var flagged []StudentStatistics
	for _, id := range studentIDs(records) {
		sum := AggregatePerStudent(records, id)
		if sum.Rate < am.threshold {
			flagged = append(flagged, StudentStatistics{StudentID: id, Summary: sum})
		}
	}
	if len(flagged) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The following students of %s are below the %.0f%% attendance threshold:\n\n", className, am.threshold)
	for _, st := range flagged {
		fmt.Fprintf(&b, "- %s: %.2f%% (%d present / %d days, %d absent, %d late, %d excused)\n",
			st.StudentID, st.Rate, st.Present, st.Total, st.Absent, st.Late, st.Excused)
	}

	am.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{to},
		Subject: fmt.Sprintf("Low attendance alert: %s", className),
		Body:    b.String(),
	})
	return flagged
}
