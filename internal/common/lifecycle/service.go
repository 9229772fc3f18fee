// Package lifecycle builds Railyard's infrastructure (App) and keeps its
// long-lived services running under a Supervisor.
//
// The HTTP API and the bus consumers are Services. The Supervisor starts
// them in order, stops them in reverse, and shuts everything down when one
// of them exits on its own. Its state is published as a readiness check.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.railyard.dev/internal/common/health"
)

// Service is a component with a supervised lifetime.
type Service interface {
	Name() string

	// Start runs the service and blocks until ctx is done. Returning
	// earlier, with or without an error, means the service has exited.
	Start(ctx context.Context) error

	// Stop releases what Start acquired. ctx carries the stop deadline.
	Stop(ctx context.Context) error

	// Health reports a problem with a running service.
	Health() error
}

// State is where a supervised service is in its lifetime.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// ErrServiceExited is reported for a service whose Start returned nil
// while the supervisor was still running.
var ErrServiceExited = errors.New("service exited")

const (
	DefaultStartGrace  = 100 * time.Millisecond
	DefaultStopTimeout = 30 * time.Second
)

// ServiceStatus is a snapshot of one service.
type ServiceStatus struct {
	Name  string
	State State
	Err   error
}

// Supervisor runs services and tracks their state.
type Supervisor struct {
	// StartGrace is how long Start may take to fail before a service
	// counts as running.
	StartGrace time.Duration
	// StopTimeout bounds each service's Stop.
	StopTimeout time.Duration

	services []Service

	mu      sync.RWMutex
	running bool
	states  map[string]State
	errs    map[string]error
}

// NewSupervisor creates a supervisor for services, started in the given order.
func NewSupervisor(services ...Service) *Supervisor {
	states := make(map[string]State, len(services))
	for _, svc := range services {
		states[svc.Name()] = StatePending
	}
	return &Supervisor{
		StartGrace:  DefaultStartGrace,
		StopTimeout: DefaultStopTimeout,
		services:    services,
		states:      states,
		errs:        make(map[string]error),
	}
}

type exit struct {
	svc Service
	err error
}

// Run starts every service and blocks until ctx is done or a service exits.
// A start failure or an unexpected exit stops the started services and is
// returned; a cancelled ctx stops them and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exited := make(chan exit, len(s.services))
	var started []Service
	for _, svc := range s.services {
		slog.Info("Starting service", "service", svc.Name())

		done := make(chan error, 1)
		go func() { done <- svc.Start(ctx) }()

		select {
		case err := <-done:
			if ctx.Err() != nil {
				s.setState(svc.Name(), StateStopped, nil)
				s.stopServices(started)
				return nil
			}
			if err == nil {
				err = ErrServiceExited
			}
			s.setState(svc.Name(), StateFailed, err)
			cancel()
			s.stopServices(started)
			return fmt.Errorf("service %s failed to start: %w", svc.Name(), err)
		case <-time.After(s.StartGrace):
		}

		s.setState(svc.Name(), StateRunning, nil)
		started = append(started, svc)
		go func() { exited <- exit{svc: svc, err: <-done} }()
		slog.Info("Service started", "service", svc.Name())
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Stopping services")
	case e := <-exited:
		if ctx.Err() == nil {
			err := e.err
			if err == nil {
				err = ErrServiceExited
			}
			s.setState(e.svc.Name(), StateFailed, err)
			slog.Error("Service exited unexpectedly, stopping the rest", "service", e.svc.Name(), "error", err)
			runErr = fmt.Errorf("service %s exited: %w", e.svc.Name(), err)
		}
	}

	cancel()
	s.stopServices(started)
	return runErr
}

// stopServices stops services in reverse order. Failed services keep their
// state and error.
func (s *Supervisor) stopServices(services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		slog.Info("Stopping service", "service", svc.Name())

		stopCtx, cancel := context.WithTimeout(context.Background(), s.StopTimeout)
		err := svc.Stop(stopCtx)
		cancel()

		if err != nil {
			slog.Error("Service stop error", "service", svc.Name(), "error", err)
		} else {
			slog.Info("Service stopped", "service", svc.Name())
		}
		if s.State(svc.Name()) != StateFailed {
			s.setState(svc.Name(), StateStopped, err)
		}
	}
}

func (s *Supervisor) setState(name string, state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = state
	if err != nil {
		s.errs[name] = err
	} else {
		delete(s.errs, name)
	}
}

// State returns the state of the named service.
func (s *Supervisor) State(name string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[name]
}

// Statuses returns a snapshot of every service in start order. Running
// services are asked for their Health.
func (s *Supervisor) Statuses() []ServiceStatus {
	out := make([]ServiceStatus, 0, len(s.services))
	for _, svc := range s.services {
		s.mu.RLock()
		st := ServiceStatus{Name: svc.Name(), State: s.states[svc.Name()], Err: s.errs[svc.Name()]}
		s.mu.RUnlock()
		if st.State == StateRunning {
			st.Err = svc.Health()
		}
		out = append(out, st)
	}
	return out
}

// Health returns nil only when every service is running and healthy.
func (s *Supervisor) Health() error {
	for _, st := range s.Statuses() {
		if st.State != StateRunning {
			return fmt.Errorf("service %s is %s", st.Name, st.State)
		}
		if st.Err != nil {
			return fmt.Errorf("service %s unhealthy: %w", st.Name, st.Err)
		}
	}
	return nil
}

// HealthCheck reports the supervised services as one readiness check.
func (s *Supervisor) HealthCheck() health.CheckFunc {
	return func(context.Context) health.Check {
		check := health.Check{Name: "Services", Status: health.StatusUp, Data: map[string]any{}}
		for _, st := range s.Statuses() {
			value := string(st.State)
			if st.Err != nil {
				value += ": " + st.Err.Error()
			}
			check.Data[st.Name] = value
			if st.State != StateRunning || st.Err != nil {
				check.Status = health.StatusDown
			}
		}
		return check
	}
}

// ServiceFunc adapts functions to Service. A nil start blocks until the
// context is done; a nil stop does nothing.
type ServiceFunc struct {
	name     string
	start    func(ctx context.Context) error
	stop     func(ctx context.Context) error
	healthFn func() error
}

// NewServiceFunc creates a Service from functions.
func NewServiceFunc(name string, start, stop func(ctx context.Context) error) *ServiceFunc {
	return &ServiceFunc{name: name, start: start, stop: stop}
}

func (s *ServiceFunc) Name() string { return s.name }

func (s *ServiceFunc) Start(ctx context.Context) error {
	if s.start == nil {
		<-ctx.Done()
		return nil
	}
	return s.start(ctx)
}

func (s *ServiceFunc) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	return s.stop(ctx)
}

func (s *ServiceFunc) Health() error {
	if s.healthFn == nil {
		return nil
	}
	return s.healthFn()
}

// WithHealth sets the function reported by Health.
func (s *ServiceFunc) WithHealth(fn func() error) *ServiceFunc {
	s.healthFn = fn
	return s
}
