package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shieldvault/ivm/internal/logger"
)

// Roles recognized by the vault. Admin satisfies every role check.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnauthorized = errors.New("caller lacks required role")
	ErrPaused       = errors.New("vault is paused")
	ErrNotPaused    = errors.New("vault is not paused")
)

// Gate is the capability check consulted before any mutating vault operation.
type Gate interface {
	// RequireRole fails with ErrUnauthorized if caller does not hold role.
	RequireRole(caller, role string) error
	// RequireActive fails with ErrPaused while the vault is paused.
	RequireActive() error
}

// Controller is the in-process Gate implementation: a fixed admin address, a
// fixed operator address, and a pause flag toggled by the admin.
type Controller struct {
	mu       sync.RWMutex
	admin    string
	operator string
	paused   bool
	logger   zerolog.Logger
}

// NewController creates a Controller with the given role assignments.
func NewController(admin, operator string) (*Controller, error) {
	if admin == "" {
		return nil, errors.New("admin address cannot be empty")
	}
	if operator == "" {
		return nil, errors.New("operator address cannot be empty")
	}
	return &Controller{
		admin:    admin,
		operator: operator,
		logger:   logger.GetForComponent("access_gate"),
	}, nil
}

// RequireRole implements Gate. The admin address passes every role check.
func (c *Controller) RequireRole(caller, role string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if caller == "" {
		return fmt.Errorf("%w: empty caller", ErrUnauthorized)
	}
	if caller == c.admin {
		return nil
	}
	if role == RoleOperator && caller == c.operator {
		return nil
	}
	return fmt.Errorf("%w: %s requires role %s", ErrUnauthorized, caller, role)
}

// RequireActive implements Gate.
func (c *Controller) RequireActive() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.paused {
		return ErrPaused
	}
	return nil
}

// Paused reports the current pause state.
func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Pause halts all mutating vault operations. Admin only.
func (c *Controller) Pause(caller string) error {
	if err := c.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return ErrPaused
	}
	c.paused = true
	c.logger.Warn().Str("caller", caller).Msg("Vault paused")
	return nil
}

// Unpause resumes mutating vault operations. Admin only.
func (c *Controller) Unpause(caller string) error {
	if err := c.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return ErrNotPaused
	}
	c.paused = false
	c.logger.Info().Str("caller", caller).Msg("Vault unpaused")
	return nil
}
