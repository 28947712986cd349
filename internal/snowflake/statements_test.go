package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKeepsWhitespaceInValues(t *testing.T) {
	stmt, err := useStatement("DATABASE", "Sales  Db")
	require.NoError(t, err)
	assert.Equal(t, "USE DATABASE IDENTIFIER('Sales  Db')", stmt)

	stmt, err = useStatement("SCHEMA", "a\tb")
	require.NoError(t, err)
	assert.Equal(t, "USE SCHEMA IDENTIFIER('a\tb')", stmt)
}

func TestRenderFlattensTemplates(t *testing.T) {
	stmt, err := fileFormatStatement(FileFormat{Name: "people_csv_format", Type: FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, `CREATE OR REPLACE FILE FORMAT people_csv_format TYPE = 'CSV' SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '"'`, stmt)
}

func TestCreateTableKeepsQuotedColumnNames(t *testing.T) {
	stmt, err := createTableStatement(TableSpec{
		Name:       "people",
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "full  name", Type: "STRING"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS people ("id" INTEGER PRIMARY KEY, "full  name" STRING)`, stmt)
}
