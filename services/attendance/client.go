package attendancesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wazoefu/mahudhurio/core"
	"github.com/wazoefu/mahudhurio/core/attendance"
)

const dateFormat = "2006-01-02"

// Client is the HTTP gateway to the remote attendance service. Every
// endpoint has a single well-defined response schema; a shape mismatch
// is a protocol error, never worked around.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ attendance.Gateway = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	timeout := conf.AttendanceAPI.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: conf.AttendanceAPI.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// errorEnvelope is the service's error schema. Code discriminates the
// conflict kinds that share a status code.
type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

func (c *Client) CreateRecord(ctx context.Context, sub attendance.NewSubmission) (attendance.Record, error) {
	var rec attendance.Record
	path := fmt.Sprintf("/v1/classes/%s/attendance", url.PathEscape(sub.ClassID))
	if err := c.do(ctx, http.MethodPost, path, createPayload(sub), &rec); err != nil {
		return attendance.Record{}, err
	}
	return rec, nil
}

func (c *Client) UpdateRecord(ctx context.Context, recordID string, sub attendance.UpdateSubmission, expectedVersion int) (attendance.Record, error) {
	body := map[string]interface{}{"version": expectedVersion}
	if sub.Date != nil {
		body["date"] = sub.Date.UTC().Format(dateFormat)
	}
	if sub.LectureID != nil {
		body["lecture_id"] = *sub.LectureID
	}
	if sub.Students != nil {
		body["students"] = sub.Students
	}

	var rec attendance.Record
	path := fmt.Sprintf("/v1/attendance/%s", url.PathEscape(recordID))
	if err := c.do(ctx, http.MethodPut, path, body, &rec); err != nil {
		return attendance.Record{}, err
	}
	return rec, nil
}

func (c *Client) DeleteRecord(ctx context.Context, classID, recordID string) error {
	path := fmt.Sprintf("/v1/classes/%s/attendance/%s", url.PathEscape(classID), url.PathEscape(recordID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) GetRecordByDate(ctx context.Context, classID string, date time.Time) (*attendance.Record, error) {
	q := url.Values{"date": {date.UTC().Format(dateFormat)}}
	return c.getRecord(ctx, classID, q)
}

func (c *Client) GetRecordByLecture(ctx context.Context, classID, lectureID string) (*attendance.Record, error) {
	q := url.Values{"lecture_id": {lectureID}}
	return c.getRecord(ctx, classID, q)
}

func (c *Client) getRecord(ctx context.Context, classID string, q url.Values) (*attendance.Record, error) {
	var rec attendance.Record
	path := fmt.Sprintf("/v1/classes/%s/attendance?%s", url.PathEscape(classID), q.Encode())
	err := c.do(ctx, http.MethodGet, path, nil, &rec)
	if err == attendance.ErrNotFound { // 404 means "no record", not a failure
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) FilterRecords(ctx context.Context, filter attendance.QueryFilter) (attendance.RecordPage, error) {
	q := make(url.Values)
	if !filter.StartDate.IsZero() {
		q.Set("start_date", filter.StartDate.UTC().Format(dateFormat))
	}
	if !filter.EndDate.IsZero() {
		q.Set("end_date", filter.EndDate.UTC().Format(dateFormat))
	}
	if filter.LectureID != "" {
		q.Set("lecture_id", filter.LectureID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	q.Set("page", strconv.Itoa(filter.Page))
	q.Set("limit", strconv.Itoa(filter.Limit))

	var page attendance.RecordPage
	path := fmt.Sprintf("/v1/classes/%s/attendance/records?%s", url.PathEscape(filter.ClassID), q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return attendance.RecordPage{}, err
	}
	return page, nil
}

func (c *Client) QueryStatistics(ctx context.Context, classID string, startDate, endDate time.Time) (attendance.Statistics, error) {
	q := make(url.Values)
	if !startDate.IsZero() {
		q.Set("start_date", startDate.UTC().Format(dateFormat))
	}
	if !endDate.IsZero() {
		q.Set("end_date", endDate.UTC().Format(dateFormat))
	}

	var stats attendance.Statistics
	path := fmt.Sprintf("/v1/classes/%s/attendance/stats?%s", url.PathEscape(classID), q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return attendance.Statistics{}, err
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &attendance.RemoteError{Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.mapError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &attendance.RemoteError{Status: resp.StatusCode, Msg: "malformed response: " + err.Error()}
	}
	return nil
}

func (c *Client) mapError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)

	switch resp.StatusCode {
	case http.StatusConflict:
		switch env.Error.Code {
		case "version_conflict":
			return attendance.ErrVersionConflict
		case "duplicate":
			return attendance.ErrDuplicate
		}
		// a 409 without a known code is a protocol error
	case http.StatusForbidden:
		return attendance.ErrRecordLocked
	case http.StatusNotFound:
		return attendance.ErrNotFound
	case http.StatusUnprocessableEntity:
		flds := make([]core.FieldError, 0, len(env.Error.Fields))
		for f, msg := range env.Error.Fields {
			flds = append(flds, core.FieldError{Field: f, Error: msg})
		}
		return core.NewValidationError(fmt.Errorf("attendance service rejected the submission"), flds...)
	}

	msg := env.Error.Message
	if msg == "" {
		msg = string(raw)
	}
	return &attendance.RemoteError{Status: resp.StatusCode, Msg: msg}
}

func createPayload(sub attendance.NewSubmission) map[string]interface{} {
	body := map[string]interface{}{
		"class_id": sub.ClassID,
		"date":     sub.Date.UTC().Format(dateFormat),
		"students": sub.Students,
	}
	if sub.LectureID != "" {
		body["lecture_id"] = sub.LectureID
	}
	return body
}
