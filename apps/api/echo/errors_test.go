package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/wazoefu/mahudhurio/core"
	logsvc "github.com/wazoefu/mahudhurio/services/logger"
)

func TestHTTPErrorHandlerSignalsShutdown(t *testing.T) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")

	invoke := func(err error) (signaled bool, rec *httptest.ResponseRecorder) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec = httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		h := newAppHTTPErrorHandler(logsvc.NewNopLogger(), translator, func() { signaled = true })
		h(err, ctx)
		return signaled, rec
	}

	t.Run("shutdown error reports 500 and signals", func(t *testing.T) {
		err := errors.Wrap(core.NewShutdownError("attendance cache index out of sync"), "updating record")
		signaled, rec := invoke(err)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.True(t, signaled)
	})

	t.Run("ordinary server error does not signal", func(t *testing.T) {
		signaled, rec := invoke(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, signaled)
	})
}
