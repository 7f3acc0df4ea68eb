package service

import (
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/builtinstrategies"
	"github.com/k8ika0s/wheel-resolver/internal/lifecycle"
	"github.com/k8ika0s/wheel-resolver/internal/repository"
	"github.com/k8ika0s/wheel-resolver/internal/resolve"
)

// buildEngine wires a fresh resolve.Engine over the builtin strategy
// classes and repository factories, standing in for api.py's module-level
// default registry construction: Go has no implicit package-scope
// registration, so the wiring is one explicit call made once at startup
// and threaded through as a *resolve.Engine field instead.
func buildEngine() (*resolve.Engine, error) {
	strategies := lifecycle.NewRegistry()
	if err := builtinstrategies.RegisterAll(strategies); err != nil {
		return nil, fmt.Errorf("register builtin strategies: %w", err)
	}

	repos := repository.NewRegistry()
	if err := repository.RegisterBuiltins(repos); err != nil {
		return nil, fmt.Errorf("register builtin repositories: %w", err)
	}

	return resolve.NewEngine(strategies, repos), nil
}
