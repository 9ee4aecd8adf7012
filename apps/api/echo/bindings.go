package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/wazoefu/mahudhurio/core/attendance"
)

type (
	// SubmissionRequest is the wire form of a create or submit call;
	// dates travel as YYYY-MM-DD strings.
	SubmissionRequest struct {
		Date      string                         `json:"date"`
		LectureID string                         `json:"lecture_id,omitempty"`
		Students  []attendance.StudentAttendance `json:"students"`
	}

	UpdateRequest struct {
		Version   int                            `json:"version"`
		Date      *string                        `json:"date,omitempty"`
		LectureID *string                        `json:"lecture_id,omitempty"`
		Students  []attendance.StudentAttendance `json:"students,omitempty"`
	}

	DraftRequest struct {
		LectureID string                         `json:"lecture_id,omitempty"`
		Students  []attendance.StudentAttendance `json:"students"`
	}

	AlertRequest struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name"`
	}
)

func (r *SubmissionRequest) Submission(classID string) (attendance.NewSubmission, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return attendance.NewSubmission{}, err
	}
	return attendance.NewSubmission{
		ClassID:   classID,
		Date:      date,
		LectureID: r.LectureID,
		Students:  r.Students,
	}, nil
}

func (r *UpdateRequest) Submission() (attendance.UpdateSubmission, error) {
	sub := attendance.UpdateSubmission{
		LectureID: r.LectureID,
		Students:  r.Students,
	}
	if r.Date != nil {
		date, err := parseDate(*r.Date)
		if err != nil {
			return attendance.UpdateSubmission{}, err
		}
		sub.Date = &date
	}
	return sub, nil
}

func (r AlertRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

// bindQueryFilter fills filter from query params; unknown params are
// ignored, malformed dates are validation errors.
func bindQueryFilter(ctx echo.Context, filter *attendance.QueryFilter) error {
	var err error
	if s := ctx.QueryParam("start_date"); s != "" {
		if filter.StartDate, err = parseDate(s); err != nil {
			return err
		}
	}
	if s := ctx.QueryParam("end_date"); s != "" {
		if filter.EndDate, err = parseDate(s); err != nil {
			return err
		}
	}
	filter.LectureID = ctx.QueryParam("lecture_id")
	filter.Status = attendance.Status(ctx.QueryParam("status"))
	filter.Page, _ = strconv.Atoi(ctx.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	return nil
}
