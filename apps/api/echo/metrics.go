package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wazoefu/mahudhurio/core"
	"github.com/wazoefu/mahudhurio/core/attendance"
)

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mahudhurio_submissions_total",
	Help: "Attendance submissions by outcome.",
}, []string{"outcome"})

func registerMetrics(app *echo.Echo) {
	app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func observeSubmission(err error) {
	outcome := "accepted"
	switch origErr := errors.Cause(err).(type) {
	case nil:
	case validator.ValidationErrors, *core.ValidationError:
		outcome = "invalid"
	case *attendance.RemoteError:
		outcome = "remote_error"
	default:
		switch origErr {
		case attendance.ErrDuplicate:
			outcome = "duplicate"
		case attendance.ErrVersionConflict:
			outcome = "version_conflict"
		case attendance.ErrRecordLocked:
			outcome = "locked"
		default:
			outcome = "failed"
		}
	}
	submissionsTotal.WithLabelValues(outcome).Inc()
}
