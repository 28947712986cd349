package snowflake

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakeload/internal/testutil"
	"flakeload/pkg/errors"
)

var bulkTarget = Target{
	Role:       "LOADER_ROLE",
	Database:   "DEMO_DB",
	Schema:     "PUBLIC",
	Warehouses: []string{"LOADER_WH"},
}

var bulkStatements = []string{
	"CREATE ROLE IF NOT EXISTS IDENTIFIER('LOADER_ROLE')",
	"CREATE DATABASE IF NOT EXISTS IDENTIFIER('DEMO_DB')",
	"GRANT USAGE ON DATABASE IDENTIFIER('DEMO_DB') TO ROLE IDENTIFIER('LOADER_ROLE')",
	"CREATE WAREHOUSE IF NOT EXISTS IDENTIFIER('LOADER_WH') WITH WAREHOUSE_SIZE = 'SMALL'",
	"GRANT USAGE ON WAREHOUSE IDENTIFIER('LOADER_WH') TO ROLE IDENTIFIER('LOADER_ROLE')",
	"USE DATABASE IDENTIFIER('DEMO_DB')",
	"CREATE SCHEMA IF NOT EXISTS IDENTIFIER('PUBLIC')",
	"GRANT USAGE ON SCHEMA IDENTIFIER('PUBLIC') TO ROLE IDENTIFIER('LOADER_ROLE')",
	"GRANT CREATE TABLE ON SCHEMA IDENTIFIER('PUBLIC') TO ROLE IDENTIFIER('LOADER_ROLE')",
	"GRANT ROLE IDENTIFIER('LOADER_ROLE') TO USER IDENTIFIER('LOADER_USER')",
}

func TestProvisionStatementOrder(t *testing.T) {
	got, err := provisionStatements(bulkTarget, testUser)
	require.NoError(t, err)
	assert.Equal(t, bulkStatements, got)
}

func TestProvisionIsRepeatable(t *testing.T) {
	s, mock := newTestSession(t)
	p := NewProvisioner(s, discardLogger())

	testutil.ExpectExecs(mock, bulkStatements...)
	testutil.ExpectExecs(mock, bulkStatements...)

	for i := 0; i < 2; i++ {
		res, err := p.Provision(context.Background(), bulkTarget)
		require.NoError(t, err)
		assert.Equal(t, len(bulkStatements), res.Statements)
	}
}

func TestProvisionFailureKeepsServiceError(t *testing.T) {
	s, mock := newTestSession(t)
	p := NewProvisioner(s, discardLogger())

	denied := fmt.Errorf("003001 (42501): SQL access control error: Insufficient privileges to operate on account")
	testutil.ExpectExecs(mock, bulkStatements[:3]...)
	mock.ExpectExec(bulkStatements[3]).WillReturnError(denied)

	_, err := p.Provision(context.Background(), bulkTarget)
	require.Error(t, err)
	assert.True(t, errors.Is(err, denied))
	assert.True(t, errors.HasCode(err, errors.ErrCodeProvisioningFailed))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, bulkStatements[3], appErr.Context["statement"])
}

func TestProvisionRejectsEmptyNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Target)
	}{
		{name: "role", mutate: func(tg *Target) { tg.Role = "" }},
		{name: "database", mutate: func(tg *Target) { tg.Database = " " }},
		{name: "schema", mutate: func(tg *Target) { tg.Schema = "" }},
		{name: "no warehouses", mutate: func(tg *Target) { tg.Warehouses = nil }},
		{name: "empty warehouse", mutate: func(tg *Target) { tg.Warehouses = []string{"WH", ""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No expectations: nothing may reach the session.
			s, _ := newTestSession(t)
			target := bulkTarget
			target.Warehouses = append([]string(nil), bulkTarget.Warehouses...)
			tt.mutate(&target)

			_, err := NewProvisioner(s, discardLogger()).Provision(context.Background(), target)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidIdentifier))
		})
	}
}

func TestProvisionTopology(t *testing.T) {
	s, mock := newTestSession(t)
	p := NewProvisioner(s, discardLogger())

	streaming := Target{Role: "STREAM_ROLE", Database: "DEMO_DB", Schema: "PUBLIC", Warehouses: []string{"STREAM_WH"}}
	streamingStatements, err := provisionStatements(streaming, testUser)
	require.NoError(t, err)

	testutil.ExpectExecs(mock, bulkStatements...)
	testutil.ExpectExecs(mock, streamingStatements...)

	results, err := p.ProvisionTopology(context.Background(), []Target{bulkTarget, streaming})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "STREAM_ROLE", results[1].Target.Role)
}

func TestIdentifierEscaping(t *testing.T) {
	id, err := identifier("role", `O'Brien\Role`)
	require.NoError(t, err)
	assert.Equal(t, `IDENTIFIER('O''Brien\\Role')`, id)
}
