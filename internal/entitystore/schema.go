package entitystore

import "fmt"

// DataTypeKind enumerates the abstract column types a Table's schema can
// declare, translated to a concrete Postgres type at DDL time (SPEC_FULL.md
// §6.1, grounded in original_source's data/schema.rs).
type DataTypeKind string

const (
	SmallInteger DataTypeKind = "small_integer"
	Integer      DataTypeKind = "integer"
	BigInteger   DataTypeKind = "big_integer"
	Float        DataTypeKind = "float"
	Double       DataTypeKind = "double"
	Text         DataTypeKind = "text"
	VarcharKind  DataTypeKind = "varchar"
	Bytea        DataTypeKind = "bytea"
	Timestamp    DataTypeKind = "timestamp"
	TimestampTz  DataTypeKind = "timestamptz"
	Date         DataTypeKind = "date"
	Time         DataTypeKind = "time"
	TimeTz       DataTypeKind = "timetz"
	Boolean      DataTypeKind = "boolean"
	Json         DataTypeKind = "json"
)

// DataType is a single column's abstract type. VarcharLen is only meaningful
// when Kind is VarcharKind.
type DataType struct {
	Kind       DataTypeKind
	VarcharLen int
}

func Varchar(n int) DataType { return DataType{Kind: VarcharKind, VarcharLen: n} }

// SQLType renders the concrete Postgres type for this DataType.
func (d DataType) SQLType() (string, error) {
	switch d.Kind {
	case SmallInteger:
		return "smallint", nil
	case Integer:
		return "integer", nil
	case BigInteger:
		return "bigint", nil
	case Float:
		return "real", nil
	case Double:
		return "double precision", nil
	case Text:
		return "text", nil
	case VarcharKind:
		if d.VarcharLen <= 0 {
			return "", fmt.Errorf("varchar length must be positive, got %d", d.VarcharLen)
		}
		return fmt.Sprintf("varchar(%d)", d.VarcharLen), nil
	case Bytea:
		return "bytea", nil
	case Timestamp:
		return "timestamp", nil
	case TimestampTz:
		return "timestamptz", nil
	case Date:
		return "date", nil
	case Time:
		return "time", nil
	case TimeTz:
		return "timetz", nil
	case Boolean:
		return "boolean", nil
	case Json:
		return "jsonb", nil
	default:
		return "", fmt.Errorf("unknown data type kind %q", d.Kind)
	}
}

// Column is a single column declaration in a Table's schema.
type Column struct {
	Name     string
	Type     DataType
	Nullable bool
}

// ConstraintKind enumerates the constraint shapes a Table's schema can
// declare.
type ConstraintKind string

const (
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintUnique     ConstraintKind = "unique"
)

// Constraint is a single constraint declaration. RefTable/RefColumn are only
// meaningful when Kind is ConstraintForeignKey.
type Constraint struct {
	Kind      ConstraintKind
	Column    string
	RefTable  string
	RefColumn string
}

// Schema is a Table's full column and constraint list.
type Schema struct {
	Columns     []Column
	Constraints []Constraint
}
