// Command blockctl is the entrypoint for the bulk account-blocking tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/corvidlabs/blockctl/cmd/blockctl/cmd"
	"github.com/corvidlabs/blockctl/internal/domain"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode applies the §7 propagation policy: only config, auth, and
// persistence errors are fatal to the process. Everything else (a
// target's own classified failure) is recorded in the outcome store and
// never reaches main as an error.
func exitCode(err error) int {
	var configErr *domain.ConfigError
	var authErr *domain.AuthError
	var persistenceErr *domain.PersistenceError
	switch {
	case errors.As(err, &configErr):
		return 2
	case errors.As(err, &authErr):
		fmt.Fprintln(os.Stderr, "cookie jar rejected or expired; refresh it and retry")
		return 3
	case errors.As(err, &persistenceErr):
		return 4
	default:
		return 1
	}
}
