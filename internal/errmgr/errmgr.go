// Package errmgr implements the Error Manager (spec.md §4.5): a registry of
// components, a global error-ingestion surface, and automatic recovery
// policy driven by severity, consecutive-failure counts, and cooldowns.
package errmgr

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valveguard/corectl/internal/observability"
)

// Category classifies the subsystem area an error originated in.
type Category int

const (
	CategoryNone Category = iota
	CategoryConnection
	CategoryCommunication
	CategoryProtocol
	CategoryResource
	CategoryMemory
	CategoryQueue
	CategoryProcessing
	CategoryValidation
	CategoryTimeout
	CategoryHardware
	CategorySystem
	CategoryConfiguration
	CategoryRecovery
)

func (c Category) String() string {
	names := [...]string{
		"NONE", "CONNECTION", "COMMUNICATION", "PROTOCOL", "RESOURCE",
		"MEMORY", "QUEUE", "PROCESSING", "VALIDATION", "TIMEOUT",
		"HARDWARE", "SYSTEM", "CONFIGURATION", "RECOVERY",
	}
	if int(c) < 0 || int(c) >= len(names) {
		return "UNKNOWN"
	}
	return names[c]
}

// Severity ranks how serious an error report is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

func (s Severity) String() string {
	names := [...]string{"INFO", "WARNING", "ERROR", "CRITICAL", "FATAL"}
	if int(s) < 0 || int(s) >= len(names) {
		return "UNKNOWN"
	}
	return names[s]
}

// Strategy is a recovery action the manager can take for a component.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyRetry
	StrategyResetState
	StrategyRestartComponent
	StrategyRestartService
	StrategySystemRestart
)

func (s Strategy) String() string {
	names := [...]string{
		"NONE", "RETRY", "RESET_STATE", "RESTART_COMPONENT",
		"RESTART_SERVICE", "SYSTEM_RESTART",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "UNKNOWN"
	}
	return names[s]
}

// escalate returns the next-stronger strategy, capped before SYSTEM_RESTART
// so an escalation chain can never itself trigger a reboot (spec.md §4.5).
func escalate(s Strategy) Strategy {
	switch s {
	case StrategyRetry:
		return StrategyResetState
	case StrategyResetState:
		return StrategyRestartComponent
	case StrategyRestartComponent:
		return StrategyRestartService
	default:
		return StrategyRestartService
	}
}

var ErrNotSupported = errors.New("errmgr: component has no recovery callback")

// RecoveryFunc is a component-supplied callback invoked to execute
// RESET_STATE / RESTART_COMPONENT / RESTART_SERVICE strategies.
type RecoveryFunc func(strategy Strategy) error

// RecoveryConfig is the per-component recovery configuration supplied at
// registration (spec.md §4.5 "Registration").
type RecoveryConfig struct {
	MaxConsecutiveErrors int
	RecoveryCooldown     time.Duration
	RetryDelay           time.Duration
	AutoRecoveryEnabled  bool
	EscalateOnFailure    bool
}

// DefaultRecoveryConfig mirrors spec.md's stated defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxConsecutiveErrors: 5,
		RecoveryCooldown:     10 * time.Second,
		RetryDelay:           1 * time.Second,
		AutoRecoveryEnabled:  true,
		EscalateOnFailure:    true,
	}
}

// Report is one ingested error report (spec.md §4.5 "Reporting").
type Report struct {
	ID             string
	Component      string
	Category       Category
	Severity       Severity
	ErrorCode      int
	UnderlyingCode int
	Context        string
	Description    string
	Timestamp      time.Time
}

type componentState struct {
	cfg               RecoveryConfig
	recover           RecoveryFunc
	consecutiveErrors int
	lastRecovery      time.Time
	lastError         time.Time
	lastSeverity      Severity
	recentReports     []Report // sliding window, trimmed to 5 minutes on read
}

// Callback is invoked synchronously for every ingested report.
type Callback func(Report)

// Manager is the Error Manager. A single mutex protects the registry and
// counters (spec.md §5 "Shared state and locks").
type Manager struct {
	mu         sync.Mutex
	components map[string]*componentState
	callback   Callback

	log     *observability.Logger
	metrics *observability.Metrics
}

// New creates an empty Error Manager.
func New(log *observability.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		components: make(map[string]*componentState),
		log:        log.WithComponent("error_manager"),
		metrics:    metrics,
	}
}

// SetCallback registers the global callback invoked on every report.
func (m *Manager) SetCallback(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// Register adds a component with its recovery configuration and optional
// recovery callback. Calling Register again replaces the configuration but
// preserves accumulated counters.
func (m *Manager) Register(component string, cfg RecoveryConfig, recover RecoveryFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.components[component]
	if !ok {
		cs = &componentState{}
		m.components[component] = cs
	}
	cs.cfg = cfg
	cs.recover = recover
}

// defaultStrategy implements spec.md §4.5's "Default strategy per
// (category, severity)" table.
func defaultStrategy(cat Category, sev Severity) Strategy {
	if sev >= SeverityCritical {
		switch cat {
		case CategoryConnection, CategoryCommunication:
			return StrategyRestartComponent
		case CategoryMemory, CategoryResource:
			return StrategyResetState
		case CategoryHardware, CategorySystem:
			return StrategySystemRestart
		}
	}
	switch cat {
	case CategoryConnection, CategoryCommunication, CategoryTimeout:
		return StrategyRetry
	case CategoryMemory, CategoryResource, CategoryQueue:
		return StrategyRetry
	case CategoryProtocol, CategoryValidation:
		return StrategyResetState
	case CategoryConfiguration:
		return StrategyNone
	}
	return StrategyNone
}

// Report ingests one error report, updates counters, logs, invokes the
// global callback, and drives the recovery decision.
func (m *Manager) Report(component string, cat Category, sev Severity, errorCode, underlyingCode int, context, description string) Report {
	m.mu.Lock()

	cs, ok := m.components[component]
	if !ok {
		cs = &componentState{cfg: DefaultRecoveryConfig()}
		m.components[component] = cs
	}

	now := time.Now()
	report := Report{
		ID:             uuid.NewString(),
		Component:      component,
		Category:       cat,
		Severity:       sev,
		ErrorCode:      errorCode,
		UnderlyingCode: underlyingCode,
		Context:        context,
		Description:    description,
		Timestamp:      now,
	}

	cs.lastError = now
	cs.lastSeverity = sev
	cs.recentReports = append(trimWindow(cs.recentReports, now), report)

	cb := m.callback
	m.mu.Unlock()

	m.logReport(report)
	if m.metrics != nil {
		m.metrics.ErrorsTotal.WithLabelValues(component, cat.String(), sev.String()).Inc()
	}
	if cb != nil {
		cb(report)
	}

	if cs.cfg.AutoRecoveryEnabled {
		m.maybeRecover(component, cs, report)
	} else {
		m.mu.Lock()
		cs.consecutiveErrors++
		m.mu.Unlock()
	}

	return report
}

func (m *Manager) logReport(r Report) {
	log := m.log.WithComponent(r.Component)
	switch {
	case r.Severity >= SeverityCritical:
		log.Error(fmt.Errorf("%s (%s/%s, code=%d)", r.Description, r.Category, r.Severity, r.ErrorCode), "component error")
	case r.Severity == SeverityError:
		log.Warn(r.Description)
	default:
		log.Debug(r.Description)
	}
}

// trimWindow drops reports older than the 5-minute health window.
func trimWindow(reports []Report, now time.Time) []Report {
	cutoff := now.Add(-5 * time.Minute)
	i := 0
	for i < len(reports) && reports[i].Timestamp.Before(cutoff) {
		i++
	}
	return reports[i:]
}

// maybeRecover implements spec.md §4.5's "Recovery decision" and
// "Execution" rules.
func (m *Manager) maybeRecover(component string, cs *componentState, report Report) {
	m.mu.Lock()
	attempt := false
	switch {
	case report.Severity >= SeverityCritical:
		attempt = true
	case cs.consecutiveErrors >= cs.cfg.MaxConsecutiveErrors:
		attempt = false
	case time.Since(cs.lastRecovery) < cs.cfg.RecoveryCooldown:
		attempt = false
	default:
		attempt = true
	}
	if !attempt {
		cs.consecutiveErrors++
		m.mu.Unlock()
		return
	}
	cs.lastRecovery = time.Now()
	strategy := defaultStrategy(report.Category, report.Severity)
	recover := cs.recover
	escalateOnFailure := cs.cfg.EscalateOnFailure
	retryDelay := cs.cfg.RetryDelay
	m.mu.Unlock()

	err := m.execute(component, strategy, recover, retryDelay)
	if err == nil {
		m.mu.Lock()
		cs.consecutiveErrors = 0
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.RecoverySuccessTotal.WithLabelValues(component, strategy.String()).Inc()
		}
		return
	}

	m.mu.Lock()
	cs.consecutiveErrors++
	m.mu.Unlock()

	if escalateOnFailure && strategy != StrategySystemRestart {
		_ = m.execute(component, escalate(strategy), recover, retryDelay)
	}
}

// execute runs a single recovery strategy. SYSTEM_RESTART is reported only
// and never actually performed (spec.md §4.5).
func (m *Manager) execute(component string, strategy Strategy, recover RecoveryFunc, retryDelay time.Duration) error {
	if m.metrics != nil {
		m.metrics.RecoveryAttemptsTotal.WithLabelValues(component, strategy.String()).Inc()
	}
	switch strategy {
	case StrategyNone:
		return nil
	case StrategyRetry:
		time.Sleep(retryDelay)
		return nil
	case StrategySystemRestart:
		m.log.WithComponent(component).Warn("system restart strategy selected, not executed")
		return nil
	case StrategyResetState, StrategyRestartComponent, StrategyRestartService:
		if recover == nil {
			return ErrNotSupported
		}
		return recover(strategy)
	default:
		return ErrNotSupported
	}
}

// HealthLevel is the overall system health derived from recent reports.
type HealthLevel int

const (
	HealthOK HealthLevel = iota
	HealthWarning
	HealthDegraded
	HealthCritical
	HealthFatal
)

func (h HealthLevel) String() string {
	names := [...]string{"OK", "WARNING", "DEGRADED", "CRITICAL", "FATAL"}
	if int(h) < 0 || int(h) >= len(names) {
		return "UNKNOWN"
	}
	return names[h]
}

// ComponentSnapshot is one component's row in a Snapshot.
type ComponentSnapshot struct {
	Component         string
	ConsecutiveErrors int
	MaxConsecutive    int
	LastSeverity      Severity
	LastError         time.Time
	Degraded          bool
}

// Snapshot is the system health snapshot (a feature carried over from the
// original firmware's diagnostics surface, not present in the distilled
// spec but natural to expose on the admin surface).
type Snapshot struct {
	Level      HealthLevel
	Components []ComponentSnapshot
}

// HealthSnapshot computes the current system health per spec.md §4.5
// "Health": the max recent severity within a 5-minute window, promoted to
// at least WARNING if any component has exhausted its consecutive-error
// budget. A component is "degraded" if it had a critical/fatal error in
// the last 2 minutes, or its consecutive failures are at least half its
// configured maximum.
func (m *Manager) HealthSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	maxSev := SeverityInfo
	anyExhausted := false
	snap := Snapshot{}

	for name, cs := range m.components {
		cs.recentReports = trimWindow(cs.recentReports, now)
		for _, r := range cs.recentReports {
			if r.Severity > maxSev {
				maxSev = r.Severity
			}
		}
		if cs.consecutiveErrors >= cs.cfg.MaxConsecutiveErrors {
			anyExhausted = true
		}

		degraded := false
		if now.Sub(cs.lastError) <= 2*time.Minute && cs.lastSeverity >= SeverityCritical {
			degraded = true
		}
		if cs.cfg.MaxConsecutiveErrors > 0 && cs.consecutiveErrors*2 >= cs.cfg.MaxConsecutiveErrors {
			degraded = true
		}

		snap.Components = append(snap.Components, ComponentSnapshot{
			Component:         name,
			ConsecutiveErrors: cs.consecutiveErrors,
			MaxConsecutive:    cs.cfg.MaxConsecutiveErrors,
			LastSeverity:      cs.lastSeverity,
			LastError:         cs.lastError,
			Degraded:          degraded,
		})
	}

	level := HealthLevel(maxSev)
	if anyExhausted && level < HealthWarning {
		level = HealthWarning
	}
	snap.Level = level
	return snap
}
