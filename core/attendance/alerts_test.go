package attendance

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wazoefu/mahudhurio/core"
)

type emailServiceMock struct {
	sent []core.EmailMessage
}

func (m *emailServiceMock) SendMessages(msgs ...*core.EmailMessage) {
	for _, msg := range msgs {
		m.sent = append(m.sent, *msg)
	}
}

func TestReportLowAttendance(t *testing.T) {
	to := mail.Address{Name: "Class Teacher", Address: "teacher@example.test"}
	// s2 attends 1 of 4 days (25%), s1 all of them
	records := []Record{
		record("2024-01-01", mark("s1", StatusPresent), mark("s2", StatusPresent)),
		record("2024-01-02", mark("s1", StatusPresent), mark("s2", StatusAbsent)),
		record("2024-01-03", mark("s1", StatusPresent), mark("s2", StatusAbsent)),
		record("2024-01-04", mark("s1", StatusPresent), mark("s2", StatusAbsent)),
	}

	t.Run("flags and mails students under the threshold", func(t *testing.T) {
		mailSvc := &emailServiceMock{}
		am := NewAlertMailer(mailSvc, 75)

		flagged := am.ReportLowAttendance(records, "Form 2B", to)
		if assert.Len(t, flagged, 1) {
			assert.Equal(t, "s2", flagged[0].StudentID)
			assert.Equal(t, 25.0, flagged[0].Rate)
		}
		if assert.Len(t, mailSvc.sent, 1) {
			msg := mailSvc.sent[0]
			assert.Equal(t, []mail.Address{to}, msg.To)
			assert.Contains(t, msg.Subject, "Form 2B")
			assert.Contains(t, msg.Body, "s2")
			assert.NotContains(t, msg.Body, "- s1:")
		}
	})

	t.Run("nothing under the threshold sends nothing", func(t *testing.T) {
		mailSvc := &emailServiceMock{}
		am := NewAlertMailer(mailSvc, 20)

		assert.Nil(t, am.ReportLowAttendance(records, "Form 2B", to))
		assert.Empty(t, mailSvc.sent)
	})
}
