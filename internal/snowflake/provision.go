package snowflake

import (
	"context"
	"log/slog"
	"time"

	"gitlab.com/tymonx/go-formatter/formatter"

	"flakeload/pkg/errors"
)

// Target is the set of objects one role needs to load data.
type Target struct {
	Role       string
	Database   string
	Schema     string
	Warehouses []string
}

// ProvisionResult describes one provisioned target.
type ProvisionResult struct {
	Target     Target
	Statements int
	Duration   time.Duration
}

// Provisioner creates roles, warehouses, the database and schema, and the
// grants between them. Every statement is idempotent, so Provision may be
// re-run after a partial failure. It is not transactional.
type Provisioner struct {
	session *Session
	logger  *slog.Logger
}

// NewProvisioner returns a Provisioner issuing statements on session.
func NewProvisioner(session *Session, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{session: session, logger: logger}
}

// Provision issues the provisioning statements for t in a fixed order,
// stopping at the first failure. The failure wraps the service error
// unchanged.
func (p *Provisioner) Provision(ctx context.Context, t Target) (ProvisionResult, error) {
	start := time.Now()

	statements, err := provisionStatements(t, p.session.User())
	if err != nil {
		return ProvisionResult{Target: t}, err
	}

	for _, stmt := range statements {
		p.logger.DebugContext(ctx, "Provisioning", slog.String("statement", stmt))
		if err := p.session.Exec(ctx, stmt); err != nil {
			return ProvisionResult{Target: t}, errors.ProvisioningError(stmt, err).
				WithContext("role", t.Role).
				WithContext("database", t.Database)
		}
	}

	result := ProvisionResult{Target: t, Statements: len(statements), Duration: time.Since(start)}
	p.logger.InfoContext(ctx, "Provisioned Snowflake objects",
		slog.String("role", t.Role),
		slog.String("database", t.Database),
		slog.String("schema", t.Schema),
		slog.Any("warehouses", t.Warehouses),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// ProvisionTopology provisions every target in order and stops at the
// first failure, returning the results gathered so far.
func (p *Provisioner) ProvisionTopology(ctx context.Context, targets []Target) ([]ProvisionResult, error) {
	results := make([]ProvisionResult, 0, len(targets))
	for _, t := range targets {
		res, err := p.Provision(ctx, t)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// provisionStatements validates every name up front so nothing is issued
// for a target with an empty identifier.
func provisionStatements(t Target, user string) ([]string, error) {
	role, err := identifier("role", t.Role)
	if err != nil {
		return nil, err
	}
	db, err := identifier("database", t.Database)
	if err != nil {
		return nil, err
	}
	schema, err := identifier("schema", t.Schema)
	if err != nil {
		return nil, err
	}
	grantee, err := identifier("user", user)
	if err != nil {
		return nil, err
	}
	if len(t.Warehouses) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidIdentifier, "at least one warehouse is required").
			WithContext("role", t.Role)
	}
	warehouses := make([]string, 0, len(t.Warehouses))
	for _, wh := range t.Warehouses {
		id, err := identifier("warehouse", wh)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, id)
	}

	names := formatter.Named{"role": role, "db": db, "schema": schema, "user": grantee}
	templates := []string{
		`CREATE ROLE IF NOT EXISTS {role}`,
		`CREATE DATABASE IF NOT EXISTS {db}`,
		`GRANT USAGE ON DATABASE {db} TO ROLE {role}`,
	}

	var out []string
	for _, tmpl := range templates {
		stmt, err := render(tmpl, names)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}

	for _, wh := range warehouses {
		for _, tmpl := range []string{
			`CREATE WAREHOUSE IF NOT EXISTS {wh} WITH WAREHOUSE_SIZE = 'SMALL'`,
			`GRANT USAGE ON WAREHOUSE {wh} TO ROLE {role}`,
		} {
			stmt, err := render(tmpl, formatter.Named{"wh": wh, "role": role})
			if err != nil {
				return nil, err
			}
			out = append(out, stmt)
		}
	}

	for _, tmpl := range []string{
		`USE DATABASE {db}`,
		`CREATE SCHEMA IF NOT EXISTS {schema}`,
		`GRANT USAGE ON SCHEMA {schema} TO ROLE {role}`,
		`GRANT CREATE TABLE ON SCHEMA {schema} TO ROLE {role}`,
		`GRANT ROLE {role} TO USER {user}`,
	} {
		stmt, err := render(tmpl, names)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}

	return out, nil
}
