// Package server connects framed byte streams to debug sessions.
package server

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/samiralibabic/stepd/internal/audit"
	"github.com/samiralibabic/stepd/internal/config"
	"github.com/samiralibabic/stepd/internal/locate"
	"github.com/samiralibabic/stepd/internal/metrics"
	"github.com/samiralibabic/stepd/internal/policy"
	"github.com/samiralibabic/stepd/internal/vm"
	"github.com/samiralibabic/stepd/internal/vm/luavm"
)

// CapabilityFactory returns the VM capability used by a new session.
type CapabilityFactory func(log logr.Logger) vm.Capability

// Service holds what every connection shares. It has no mutable state of
// its own; sessions are created per connection by Serve.
type Service struct {
	cfg     config.Config
	log     logr.Logger
	newCap  CapabilityFactory
	locator *locate.Locator
	metrics *metrics.Metrics
	audit   *audit.Trail
}

type Option func(*Service)

func WithLogger(log logr.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithCapability(f CapabilityFactory) Option {
	return func(s *Service) { s.newCap = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(cfg config.Config, opts ...Option) (*Service, error) {
	pol, err := policy.New(config.AllowedRoots(cfg))
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg: cfg,
		log: logr.Discard(),
		newCap: func(log logr.Logger) vm.Capability {
			return luavm.New(log)
		},
		locator: &locate.Locator{
			Policy:       pol,
			ManifestName: cfg.Program.Manifest,
			Extension:    cfg.Program.Extension,
			MaxBytes:     cfg.Limits.MaxProgramBytes,
		},
	}
	if cfg.Audit.Enabled && cfg.Audit.Path != "" {
		if s.audit, err = audit.Open(cfg.Audit.Path); err != nil {
			return nil, fmt.Errorf("open audit trail: %w", err)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s, nil
}

func (s *Service) Config() config.Config {
	return s.cfg
}

func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close releases the audit trail.
func (s *Service) Close() error {
	return s.audit.Close()
}
