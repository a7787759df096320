// Command admin-token mints a bearer token for the operator endpoints,
// signed with the configured JWT secret.
//
// Usage:
//
//	admin-token -subject ops@example.com -role admin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/taskboard-scheduler/internal/config"
	"github.com/phrazzld/taskboard-scheduler/internal/service/auth"
)

func main() {
	subject := flag.String("subject", "", "operator identity recorded in the token")
	role := flag.String("role", string(auth.RoleAdmin), "token role: admin, superuser or viewer")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := run(os.Stdout, cfg.Auth, *subject, auth.Role(*role)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, cfg config.AuthConfig, subject string, role auth.Role) error {
	if subject == "" {
		return errors.New("-subject is required")
	}
	svc, err := auth.NewJWTService(cfg)
	if err != nil {
		return err
	}
	token, err := svc.GenerateToken(context.Background(), subject, role)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
