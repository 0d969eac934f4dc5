package config

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/maintenance-monitor/internal/expr"
	"github.com/sweeney/maintenance-monitor/internal/logic"
)

// Build creates the engine for m, compiling any expressions. clock may be nil.
func (m Monitor) Build(clock logic.Clock, log logr.Logger) (*logic.Monitor, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	strategy, err := logic.NewStrategy(m.strategyConfig())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}

	log = log.WithValues("id", m.ID)
	opts := logic.Options{
		Name:     m.DisplayName(),
		Source:   m.Source.String(),
		Strategy: strategy,
		OnStates: m.OnStates,
		Clock:    clock,
		Logger:   log,
	}
	if m.InitialLastMaintenanceDate != "" {
		t, err := logic.ParseDate(m.InitialLastMaintenanceDate, clock().Location())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: initial_last_maintenance_date: %v", logic.ErrConfig, m.ID, err)
		}
		opts.LastMaintenance = t
	}
	if m.IsOnExpression != "" {
		if opts.OnPredicate, err = expr.OnPredicate(m.IsOnExpression, log); err != nil {
			return nil, fmt.Errorf("%w: %s: is_on_expression: %v", logic.ErrConfig, m.ID, err)
		}
	}
	if m.MaintenanceNeededExpression != "" {
		if opts.NeededOverride, err = expr.NeededOverride(m.MaintenanceNeededExpression, log); err != nil {
			return nil, fmt.Errorf("%w: %s: maintenance_needed_expression: %v", logic.ErrConfig, m.ID, err)
		}
	}
	if m.PredictedDateExpression != "" {
		if opts.PredictedOverride, err = expr.PredictedOverride(m.PredictedDateExpression, log); err != nil {
			return nil, fmt.Errorf("%w: %s: predicted_date_expression: %v", logic.ErrConfig, m.ID, err)
		}
	}
	return logic.NewMonitor(opts)
}
