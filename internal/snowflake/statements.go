package snowflake

import (
	"fmt"
	"regexp"
	"strings"

	"gitlab.com/tymonx/go-formatter/formatter"

	"flakeload/pkg/errors"
)

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]{0,254}$`)

// identifier renders name as IDENTIFIER('name'), escaping the literal.
func identifier(kind, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.Newf(errors.ErrCodeInvalidIdentifier, "%s name is empty", kind).
			WithContext("kind", kind)
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(name)
	return "IDENTIFIER('" + escaped + "')", nil
}

// plain validates a name used where IDENTIFIER() is not accepted (stage
// references, file format references, COPY targets).
func plain(kind, name string) (string, error) {
	if !plainIdentifier.MatchString(name) {
		return "", errors.Newf(errors.ErrCodeInvalidIdentifier, "%s name %q must be an unquoted Snowflake identifier", kind, name).
			WithContext("kind", kind)
	}
	return name, nil
}

// render collapses a statement template onto one line, then fills it.
// Values are inserted verbatim, so whitespace inside quoted names and
// literals survives.
func render(tmpl string, args formatter.Named) (string, error) {
	sql, err := formatter.Format(strings.Join(strings.Fields(tmpl), " "), args)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to render statement")
	}
	return sql, nil
}

func useStatement(kind, name string) (string, error) {
	id, err := identifier(strings.ToLower(kind), name)
	if err != nil {
		return "", err
	}
	return render(`USE {kind} {name}`, formatter.Named{"kind": kind, "name": id})
}

func fileFormatStatement(f FileFormat) (string, error) {
	name, err := plain("file format", f.Name)
	if err != nil {
		return "", err
	}

	switch f.Type {
	case FormatJSON:
		return render(`
CREATE OR REPLACE FILE FORMAT {name}
TYPE = 'JSON'
STRIP_OUTER_ARRAY = FALSE
MULTI_LINE = FALSE
`, formatter.Named{"name": name})
	case FormatCSV:
		return render(`
CREATE OR REPLACE FILE FORMAT {name}
TYPE = 'CSV'
SKIP_HEADER = 1
FIELD_OPTIONALLY_ENCLOSED_BY = '"'
`, formatter.Named{"name": name})
	default:
		return "", errors.Newf(errors.ErrCodeFileFormat, "unsupported file format type %q", f.Type)
	}
}

func createStageStatement(stage string) (string, error) {
	return render(`CREATE TEMPORARY STAGE {stage}`, formatter.Named{"stage": stage})
}

func dropStageStatement(stage string) (string, error) {
	return render(`DROP STAGE IF EXISTS {stage}`, formatter.Named{"stage": stage})
}

func putStatement(fileName, stage string) (string, error) {
	return render(`PUT file://{file} @{stage} AUTO_COMPRESS = TRUE OVERWRITE = TRUE`, formatter.Named{
		"file":  fileName,
		"stage": stage,
	})
}

func createTableStatement(t TableSpec) (string, error) {
	name, err := plain("table", t.Name)
	if err != nil {
		return "", err
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := quoteColumn(c.Name) + " " + c.Type
		if c.Name == t.PrimaryKey {
			def += " PRIMARY KEY"
		} else if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return render(`CREATE TABLE IF NOT EXISTS {table} ({columns})`, formatter.Named{
		"table":   name,
		"columns": strings.Join(defs, ", "),
	})
}

func copyStatement(t TableSpec, f FileFormat, stage, fileName string) (string, error) {
	table, err := plain("table", t.Name)
	if err != nil {
		return "", err
	}
	format, err := plain("file format", f.Name)
	if err != nil {
		return "", err
	}

	cols := make([]string, 0, len(t.Columns))
	exprs := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		cols = append(cols, quoteColumn(c.Name))
		switch f.Type {
		case FormatJSON:
			path := c.Source
			if path == "" {
				path = c.Name
			}
			exprs = append(exprs, fmt.Sprintf("$1:%s::%s", path, c.Type))
		default:
			exprs = append(exprs, fmt.Sprintf("$%d", i+1))
		}
	}

	return render(`
COPY INTO {table} ({columns})
FROM (SELECT {exprs} FROM @{stage}/{file} (FILE_FORMAT => {format}))
`, formatter.Named{
		"table":   table,
		"columns": strings.Join(cols, ", "),
		"exprs":   strings.Join(exprs, ", "),
		"stage":   stage,
		"file":    fileName,
		"format":  format,
	})
}

func countStatement(table string) (string, error) {
	name, err := plain("table", table)
	if err != nil {
		return "", err
	}
	return render(`SELECT COUNT(*) FROM {table}`, formatter.Named{"table": name})
}

func quoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
