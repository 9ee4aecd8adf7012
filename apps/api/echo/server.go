package echoapi

import (
	"context"
	"net/http"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/wazoefu/mahudhurio/core"
	"github.com/wazoefu/mahudhurio/core/attendance"
	redisdrafts "github.com/wazoefu/mahudhurio/storage/draftstore/redis"
)

type (
	Options struct {
		Conf           *core.Config
		DisableReqLogs bool

		Repo       *attendance.Repository
		Reconciler *attendance.Reconciler
		Drafts     attendance.DraftStore
		Alerts     *attendance.AlertMailer

		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger

		Redis *redis.Client // optional; health reporting only
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

// NewServer sets up the API. shutdown receives a signal when an
// unrecoverable error is caught so main can stop the server gracefully.
func NewServer(opts *Options, shutdown chan os.Signal) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", s.health)
	registerMetrics(s.app)

	v1 := s.app.Group("/v1")
	registerAttendanceAPI(v1, s.opts)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Addr)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	s.shutdown <- os.Interrupt
}

func (s *server) health(ctx echo.Context) error {
	res := echo.Map{"status": "ok"}
	if s.opts.Redis != nil {
		res["redis"] = redisdrafts.Healthy(ctx.Request().Context(), s.opts.Redis)
	}
	return ctx.JSON(http.StatusOK, res)
}
