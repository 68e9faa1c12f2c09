package entitystore

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// quoteIdent sanitizes a single identifier for interpolation into DDL.
// pgx.Identifier{}.Sanitize() quotes and escapes, rejecting embedded NUL
// bytes — the same approach the teacher uses wherever it builds DDL by
// hand instead of through squirrel, since squirrel itself has no DDL
// builder.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnDefSQL(c Column) (string, error) {
	sqlType, err := c.Type.SQLType()
	if err != nil {
		return "", fmt.Errorf("column %q: %w", c.Name, err)
	}
	def := fmt.Sprintf("%s %s", quoteIdent(c.Name), sqlType)
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def, nil
}

func constraintDefSQL(c Constraint) (string, error) {
	switch c.Kind {
	case ConstraintPrimaryKey:
		return fmt.Sprintf("PRIMARY KEY (%s)", quoteIdent(c.Column)), nil
	case ConstraintUnique:
		return fmt.Sprintf("UNIQUE (%s)", quoteIdent(c.Column)), nil
	case ConstraintForeignKey:
		return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(c.Column), quoteIdent(c.RefTable), quoteIdent(c.RefColumn)), nil
	default:
		return "", fmt.Errorf("unknown constraint kind %q", c.Kind)
	}
}

// BuildCreateTableSQL renders a CREATE TABLE statement for schema. Callers
// must ensure schema.Columns is non-empty before calling; entitystore's
// CreateTable does this as part of the NoColumns invariant.
func BuildCreateTableSQL(name string, schema Schema) (string, error) {
	var defs []string
	for _, col := range schema.Columns {
		def, err := columnDefSQL(col)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	for _, c := range schema.Constraints {
		def, err := constraintDefSQL(c)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quoteIdent(name), strings.Join(defs, ",\n\t")), nil
}

// BuildAddColumnSQL renders an additive ALTER TABLE ... ADD COLUMN
// statement for a single new column.
func BuildAddColumnSQL(table string, col Column) (string, error) {
	def, err := columnDefSQL(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), def), nil
}

// BuildDropTableSQL renders a DROP TABLE statement.
func BuildDropTableSQL(name string) (string, error) {
	return fmt.Sprintf("DROP TABLE %s", quoteIdent(name)), nil
}
