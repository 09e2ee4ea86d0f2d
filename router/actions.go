package router

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/mvc"
)

// ActionRegistry maps "pkg.Type.Method" names to action code. The
// annotation scan finds routes in source; this table supplies what to call.
type ActionRegistry struct {
	actions map[string]mvc.Action
	logger  *zap.Logger
}

// NewActionRegistry creates a new action registry
func NewActionRegistry(logger *zap.Logger) *ActionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionRegistry{
		actions: make(map[string]mvc.Action),
		logger:  logger,
	}
}

// Register adds an action for controller (a bean name such as
// "customer.Controller") and method
func (r *ActionRegistry) Register(controller, method string, action mvc.Action) {
	key := fmt.Sprintf("%s.%s", controller, method)
	r.actions[key] = action
	r.logger.Debug("Action registered", zap.String("action", key))
}

// GetAction retrieves an action by controller and method name
func (r *ActionRegistry) GetAction(controller, method string) (mvc.Action, error) {
	key := fmt.Sprintf("%s.%s", controller, method)

	action, exists := r.actions[key]
	if !exists {
		return nil, fmt.Errorf("action not found: %s", key)
	}

	return action, nil
}

// ListActions returns all registered action names, sorted
func (r *ActionRegistry) ListActions() []string {
	names := make([]string, 0, len(r.actions))
	for key := range r.actions {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered actions
func (r *ActionRegistry) Count() int {
	return len(r.actions)
}
