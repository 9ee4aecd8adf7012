package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/wazoefu/mahudhurio/apps/api/echo"
	"github.com/wazoefu/mahudhurio/core"
	"github.com/wazoefu/mahudhurio/core/attendance"
	attendancesvc "github.com/wazoefu/mahudhurio/services/attendance"
	emailsvc "github.com/wazoefu/mahudhurio/services/email"
	logsvc "github.com/wazoefu/mahudhurio/services/logger"
	redisdrafts "github.com/wazoefu/mahudhurio/storage/draftstore/redis"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, conf.AppName+" : ", log.LstdFlags|log.Lshortfile), conf)

	// set up validation
	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	core.InitValidators(validate, translator)
	attendance.RegisterValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	redisClient := redisdrafts.NewClient(conf.Redis.Addr)
	defer redisClient.Close()
	drafts := redisdrafts.NewDraftStore(redisClient, conf.Drafts.TTL, logger)

	gateway := attendancesvc.NewClient(conf)
	repo := attendance.NewRepository(gateway, validate)
	reconciler := attendance.NewReconciler(repo, drafts, logger)
	alerts := attendance.NewAlertMailer(mailSvc, conf.Alerts.RateThreshold)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Repo:       repo,
		Reconciler: reconciler,
		Drafts:     drafts,
		Alerts:     alerts,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		Redis:      redisClient,
	}, shutdown)

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- app.Start() }()
	logger.Info("API server started on " + conf.Server.Addr)

	select {
	case err := <-serverErrors:
		logger.Fatal("server error", err)
	case sig := <-shutdown:
		logger.Info("shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			logger.Error("graceful shutdown failed", err)
		}
	}
}
