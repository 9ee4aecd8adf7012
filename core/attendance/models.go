package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wazoefu/mahudhurio/core"
)

// Statuses a student can be marked with.
const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

type Status string

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Record types; a record is taken either for a calendar day or for a
// specific lecture on that day.
const (
	TypeDate    RecordType = "date"
	TypeLecture RecordType = "lecture"
)

type RecordType string

// Client-observed record states. "absent" (no record at all) has no
// representation; pending states revert to the prior state when the
// remote call fails.
const (
	StatePendingCreate State = "pending_create"
	StatePendingUpdate State = "pending_update"
	StateConfirmed     State = "confirmed"
	StateLocked        State = "locked"
)

type State string

type (
	// StudentAttendance is one student's mark within a Record.
	StudentAttendance struct {
		StudentID string `json:"student_id" validate:"required,studentid"`
		Status    Status `json:"status" validate:"required,status"`
		Remarks   string `json:"remarks,omitempty" validate:"omitempty,max=500"`
	}

	// Record is one persisted mark-up of student statuses for a class on a
	// date or lecture. Version is the optimistic-concurrency token; the
	// server increments it on every accepted update.
	Record struct {
		ID          string              `json:"id"`
		ClassID     string              `json:"class_id"`
		Date        time.Time           `json:"date"` // calendar day, UTC
		LectureID   string              `json:"lecture_id,omitempty"`
		Type        RecordType          `json:"type"`
		Students    []StudentAttendance `json:"students"`
		Version     int                 `json:"version"`
		IsLocked    bool                `json:"is_locked"`
		SubmittedBy string              `json:"submitted_by,omitempty"`
		SubmittedAt time.Time           `json:"submitted_at,omitempty"`
		CreatedAt   time.Time           `json:"created_at"`
		UpdatedAt   time.Time           `json:"updated_at"`
		State       State               `json:"state,omitempty"`
	}

	// Key identifies the single non-superseded record a class may have
	// for a date (or a lecture on that date).
	Key struct {
		ClassID   string
		Date      string // YYYY-MM-DD
		LectureID string
	}
)

func NewKey(classID string, date time.Time, lectureID string) Key {
	return Key{ClassID: classID, Date: date.UTC().Format("2006-01-02"), LectureID: lectureID}
}

func (r *Record) Key() Key { return NewKey(r.ClassID, r.Date, r.LectureID) }

func (r *Record) Student(studentID string) *StudentAttendance {
	for i := range r.Students {
		if r.Students[i].StudentID == studentID {
			return &r.Students[i]
		}
	}
	return nil
}

// Clone deep-copies the record so cache internals are never shared with
// callers.
func (r *Record) Clone() Record {
	c := *r
	c.Students = make([]StudentAttendance, len(r.Students))
	copy(c.Students, r.Students)
	return c
}

func recordType(lectureID string) RecordType {
	if lectureID != "" {
		return TypeLecture
	}
	return TypeDate
}

// NewSubmission contains the information needed to create a new Record.
type NewSubmission struct {
	ClassID   string              `json:"class_id" validate:"required"`
	Date      time.Time           `json:"date" validate:"required"`
	LectureID string              `json:"lecture_id,omitempty"`
	Students  []StudentAttendance `json:"students" validate:"required,min=1,unique=StudentID,dive"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.LectureID = core.CleanString(ns.LectureID)
	cleanStudents(ns.Students)
	return validate.Struct(ns)
}

func (ns *NewSubmission) Key() Key { return NewKey(ns.ClassID, ns.Date, ns.LectureID) }

// UpdateSubmission defines what may be modified on an existing Record.
// Zero-valued fields are left untouched.
type UpdateSubmission struct {
	Date      *time.Time          `json:"date,omitempty"`
	LectureID *string             `json:"lecture_id,omitempty"`
	Students  []StudentAttendance `json:"students,omitempty" validate:"omitempty,min=1,unique=StudentID,dive"`
}

func (us *UpdateSubmission) Validate(validate *validator.Validate) error {
	if us.LectureID != nil {
		l := core.CleanString(*us.LectureID)
		us.LectureID = &l
	}
	cleanStudents(us.Students)
	return validate.Struct(us)
}

func cleanStudents(students []StudentAttendance) {
	for i := range students {
		students[i].StudentID = core.CleanString(students[i].StudentID)
		students[i].Remarks = core.CleanString(students[i].Remarks)
	}
}

// QueryFilter applies AND operation on available fields when listing
// records against the remote service.
type QueryFilter struct {
	ClassID   string    `query:"class_id"`
	StartDate time.Time `query:"start_date"`
	EndDate   time.Time `query:"end_date"`
	LectureID string    `query:"lecture_id"`
	Status    Status    `query:"status"`
	Page      int       `query:"page"`
	Limit     int       `query:"limit"`
}

func (qf *QueryFilter) Clean() {
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.LectureID = core.CleanString(qf.LectureID)
	if qf.Page <= 0 {
		qf.Page = 1
	}
	if qf.Limit <= 0 || qf.Limit > 100 {
		qf.Limit = 50
	}
}

// RecordPage is one page of a filtered listing.
type RecordPage struct {
	Records []Record `json:"records"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
}
