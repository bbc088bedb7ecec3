package corebus

import (
	"github.com/aws-greengrass-lite/corebus/cmn/config"
	"github.com/aws-greengrass-lite/corebus/ipc"
	"github.com/prometheus/client_golang/prometheus"
)

// Context bundles the process-wide state that the source program kept
// as ambient globals (entropy fd, component table, log mutex — §9's
// "Global Mutable State" note) into one value, constructed once by the
// embedding daemon and threaded explicitly through Listen and through
// every Connection it accepts. The only thing this core still allows
// as an ambient global is the log mutex itself (cmn/nlog), whose sole
// purpose is serialising stderr.
type Context struct {
	Config        config.Config
	Registry      *ipc.Registry
	Authenticator *ipc.Authenticator
	Metrics       *Metrics
}

// NewContext wires a Registry and Authenticator from cfg and validator,
// and registers a fresh Metrics set against reg (pass nil for the
// default Prometheus registry, or prometheus.NewRegistry() for an
// isolated one in tests).
func NewContext(cfg config.Config, validator ipc.NameValidator, reg prometheus.Registerer) (*Context, error) {
	registry := ipc.New(cfg.MaxGenericComponents, ipc.ReadSystemEntropy)
	return &Context{
		Config:        cfg,
		Registry:      registry,
		Authenticator: ipc.NewAuthenticator(registry, validator),
		Metrics:       NewMetrics(reg),
	}, nil
}
