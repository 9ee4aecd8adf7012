package echoapi

import (
	"context"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wazoefu/mahudhurio/core"
	"github.com/wazoefu/mahudhurio/core/attendance"
)

const dateFormat = "2006-01-02"

type attendanceApi struct {
	opts *Options
}

func registerAttendanceAPI(g *echo.Group, opts *Options) {
	api := attendanceApi{opts: opts}

	cg := g.Group("/classes/:classId/attendance")

	// record lifecycle
	cg.POST("", api.create)
	cg.GET("", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	cg.GET("/records", api.query)

	// drafting & submission
	cg.GET("/state", api.loadState)
	cg.POST("/submit", api.submit)
	cg.GET("/drafts/:date", api.retrieveDraft)
	cg.PUT("/drafts/:date", api.saveDraft)
	cg.DELETE("/drafts/:date", api.discardDraft)

	// derived views
	cg.GET("/stats", api.stats)
	cg.POST("/alerts", api.sendAlerts)
}

// Handlers

func (api *attendanceApi) create(ctx echo.Context) error {
	var data SubmissionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionRequest")
	}
	sub, err := data.Submission(ctx.Param("classId"))
	if err != nil {
		return err
	}

	rec, err := api.opts.Repo.Create(ctx.Request().Context(), sub)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	classID := ctx.Param("classId")
	reqCtx := ctx.Request().Context()

	var rec *attendance.Record
	var err error
	if lectureID := ctx.QueryParam("lecture_id"); lectureID != "" {
		rec, err = api.opts.Repo.GetByLecture(reqCtx, classID, lectureID)
	} else {
		date, derr := parseDate(ctx.QueryParam("date"))
		if derr != nil {
			return derr
		}
		rec, err = api.opts.Repo.GetByDate(reqCtx, classID, date)
	}
	if err != nil {
		return err
	}
	if rec == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	var data UpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRequest")
	}
	sub, err := data.Submission()
	if err != nil {
		return err
	}

	rec, err := api.opts.Repo.Update(ctx.Request().Context(), ctx.Param("id"), sub, data.Version)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.opts.Repo.Delete(ctx.Request().Context(), ctx.Param("classId"), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	var filter attendance.QueryFilter
	if err := bindQueryFilter(ctx, &filter); err != nil {
		return err
	}
	filter.ClassID = ctx.Param("classId")

	page, err := api.opts.Repo.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

// loadState resolves record-vs-draft precedence for an editing session:
// a confirmed record always wins and clears the draft.
func (api *attendanceApi) loadState(ctx echo.Context) error {
	date, err := parseDate(ctx.QueryParam("date"))
	if err != nil {
		return err
	}

	rec, draft, err := api.opts.Reconciler.LoadState(ctx.Request().Context(), ctx.Param("classId"), date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"record": rec, "draft": draft})
}

func (api *attendanceApi) submit(ctx echo.Context) error {
	classID := ctx.Param("classId")
	reqCtx := ctx.Request().Context()

	var data SubmissionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionRequest")
	}
	date, err := parseDate(data.Date)
	if err != nil {
		return err
	}

	d := attendance.Draft{
		ClassID:   classID,
		Date:      date,
		LectureID: data.LectureID,
		Students:  data.Students,
	}
	if len(d.Students) == 0 {
		// no inline edit: submit the stored draft
		if stored := api.opts.Drafts.LoadDraft(reqCtx, classID, date); stored != nil {
			d = *stored
		}
	}

	rec, err := api.opts.Reconciler.Submit(reqCtx, d)
	observeSubmission(err)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) retrieveDraft(ctx echo.Context) error {
	date, err := parseDate(ctx.Param("date"))
	if err != nil {
		return err
	}
	d := api.opts.Drafts.LoadDraft(ctx.Request().Context(), ctx.Param("classId"), date)
	if d == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *attendanceApi) saveDraft(ctx echo.Context) error {
	date, err := parseDate(ctx.Param("date"))
	if err != nil {
		return err
	}
	var data DraftRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftRequest")
	}

	api.opts.Drafts.SaveDraft(ctx.Request().Context(), attendance.Draft{
		ClassID:   ctx.Param("classId"),
		Date:      date,
		LectureID: data.LectureID,
		Students:  data.Students,
	})
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) discardDraft(ctx echo.Context) error {
	date, err := parseDate(ctx.Param("date"))
	if err != nil {
		return err
	}
	api.opts.Drafts.ClearDraft(ctx.Request().Context(), ctx.Param("classId"), date)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) stats(ctx echo.Context) error {
	classID := ctx.Param("classId")
	startDate, endDate, err := parseDateRange(ctx)
	if err != nil {
		return err
	}

	// the remote service can compute server-side; default derives from
	// the repository's current record set
	if ctx.QueryParam("remote") == "1" {
		stats, err := api.opts.Repo.Statistics(ctx.Request().Context(), classID, startDate, endDate)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, stats)
	}

	records, err := api.listAll(ctx.Request().Context(), attendance.QueryFilter{
		ClassID:   classID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attendance.ComputeStatistics(records))
}

func (api *attendanceApi) sendAlerts(ctx echo.Context) error {
	var data AlertRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AlertRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}
	startDate, endDate, err := parseDateRange(ctx)
	if err != nil {
		return err
	}

	classID := ctx.Param("classId")
	records, err := api.listAll(ctx.Request().Context(), attendance.QueryFilter{
		ClassID:   classID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		return err
	}

	flagged := api.opts.Alerts.ReportLowAttendance(records, classID, mail.Address{Name: data.Name, Address: data.Email})
	return ctx.JSON(http.StatusOK, echo.Map{"flagged": flagged})
}

// helpers

// listAll drains every page of the filter. Derived views aggregate the
// full record set for the period; a single page would silently skew the
// numbers once a class exceeds the page size.
func (api *attendanceApi) listAll(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	filter.Page = 1
	filter.Limit = 100
	var records []attendance.Record
	for {
		page, err := api.opts.Repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if len(records) >= page.Total || len(page.Records) == 0 {
			return records, nil
		}
		filter.Page++
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this field is required"})
	}
	d, err := time.ParseInLocation(dateFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "must be a date in YYYY-MM-DD format"})
	}
	return d, nil
}

func parseDateRange(ctx echo.Context) (startDate, endDate time.Time, err error) {
	if s := ctx.QueryParam("start_date"); s != "" {
		if startDate, err = parseDate(s); err != nil {
			return
		}
	}
	if s := ctx.QueryParam("end_date"); s != "" {
		if endDate, err = parseDate(s); err != nil {
			return
		}
	}
	return
}
