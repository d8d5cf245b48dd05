package main

import (
	"log"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoportal "github.com/trezcool/masomo/portal/apps/portal/echo"
	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/services/backend"
	logsvc "github.com/trezcool/masomo/portal/services/logger"
)

func newZapLogger(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZapLogger(conf, "portal")
}

func newLogger(conf *core.Config, zl *zap.Logger) (core.Logger, *logsvc.RollbarLogger) {
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger, logger
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *echoportal.Metrics {
	return echoportal.NewMetrics(reg)
}

// newBackendClient wires the expiry hook: a session rejected by the API ends the portal session it came from.
func newBackendClient(conf *core.Config, logger core.Logger, resolver session.Resolver) *backend.Client {
	return backend.NewClient(conf, logger, resolver, backend.OnExpired(echoportal.LogoutExpired(logger)))
}

// newContainer returns a new dependency injection dig.Container
func newContainer() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(session.NewJWTResolver, dig.As(new(session.Resolver))))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newRegistry))
	must(c.Provide(newMetrics))
	must(c.Provide(newBackendClient, dig.As(new(echoportal.Backend))))
	must(c.Provide(echoportal.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
