package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/moolen/gameterm/internal/logging"
)

// DefaultShutdownTimeout is the grace period each component gets to stop.
const DefaultShutdownTimeout = 10 * time.Second

// Manager starts components after their dependencies and stops them in
// reverse start order. A failed start stops whatever had already
// started.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	dependencies    map[Component][]Component
	started         []Component
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		dependencies:    make(map[Component][]Component),
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// Register adds component. Its dependencies must already be registered,
// which also rules out cycles.
func (m *Manager) Register(component Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return fmt.Errorf("cannot register nil component")
	}
	if component.Name() == "" {
		return fmt.Errorf("component must have a non-empty name")
	}
	if slices.Contains(m.components, component) {
		return fmt.Errorf("component %s is already registered", component.Name())
	}
	for _, dep := range dependsOn {
		if !slices.Contains(m.components, dep) {
			return fmt.Errorf("dependency %s of %s is not registered", dep.Name(), component.Name())
		}
	}

	m.components = append(m.components, component)
	m.dependencies[component] = dependsOn
	m.logger.Debug("registered %s with %d dependencies", component.Name(), len(dependsOn))
	return nil
}

// Start starts every registered component in dependency order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = nil
	for _, component := range m.order() {
		begin := time.Now()
		if err := component.Start(ctx); err != nil {
			m.logger.Error("Failed to start %s: %v", component.Name(), err)
			m.rollback()
			return fmt.Errorf("failed to start %s: %w", component.Name(), err)
		}
		m.started = append(m.started, component)
		m.logger.Debug("%s started (took %dms)", component.Name(), time.Since(begin).Milliseconds())
	}
	m.logger.Info("Started %d components", len(m.started))
	return nil
}

// order returns components with dependencies before dependents,
// otherwise in registration order.
func (m *Manager) order() []Component {
	visited := make(map[Component]bool, len(m.components))
	sorted := make([]Component, 0, len(m.components))

	var visit func(c Component)
	visit = func(c Component) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, dep := range m.dependencies[c] {
			visit(dep)
		}
		sorted = append(sorted, c)
	}
	for _, c := range m.components {
		visit(c)
	}
	return sorted
}

func (m *Manager) rollback() {
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		if err := component.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping %s during rollback: %v", component.Name(), err)
		}
		cancel()
	}
	m.started = nil
}

// Stop stops started components in reverse start order. Errors are
// logged and joined; every component gets its chance to stop.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		stopCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(stopCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("%s did not stop within %s", component.Name(), m.shutdownTimeout)
			errs = append(errs, fmt.Errorf("%s: %w", component.Name(), err))
		case err != nil:
			m.logger.Error("Error stopping %s: %v", component.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", component.Name(), err))
		default:
			m.logger.Debug("%s stopped", component.Name())
		}
	}
	m.started = nil
	return errors.Join(errs...)
}

// IsRunning reports whether component started and has not been stopped.
func (m *Manager) IsRunning(component Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.started, component)
}

// SetShutdownTimeout sets the per-component grace period.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}
