package deps

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"scribe/internal/services"
)

// Checker answers "is this tool runnable" before a task spawns. Successful
// lookups are memoized for the daemon's lifetime; failures are re-probed so
// installing a missing tool does not require a restart.
type Checker struct {
	mu sync.Mutex
	ok map[string]struct{}
}

// NewChecker constructs an empty Checker.
func NewChecker() *Checker {
	return &Checker{ok: make(map[string]struct{})}
}

// Ensure verifies that binary resolves on PATH (or is directly executable).
func (c *Checker) Ensure(binary string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return services.Wrap(services.ErrConfiguration, "deps", "ensure", "command not configured", nil)
	}

	c.mu.Lock()
	_, cached := c.ok[binary]
	c.mu.Unlock()
	if cached {
		return nil
	}

	if _, err := exec.LookPath(binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "deps", "ensure",
			fmt.Sprintf("binary %q not found; install it or point the config at it", binary), err)
	}

	c.mu.Lock()
	c.ok[binary] = struct{}{}
	c.mu.Unlock()
	return nil
}
