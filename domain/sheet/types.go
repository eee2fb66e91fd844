package sheet

// InferredType is the column type decided by inference or by a user override
type InferredType string

const (
	TypeString  InferredType = "string"
	TypeNumber  InferredType = "number"
	TypeBoolean InferredType = "boolean"
	TypeDate    InferredType = "date"
	TypeNull    InferredType = "null"
	TypeMixed   InferredType = "mixed"
	TypeUnknown InferredType = "unknown"
)

// Valid reports whether t is one of the seven known types
func (t InferredType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeNull, TypeMixed, TypeUnknown:
		return true
	}
	return false
}

// Persisted maps the rich type onto the four-type enum stored in dataset_columns.
// null, mixed and unknown columns are stored as string.
func (t InferredType) Persisted() InferredType {
	switch t {
	case TypeNumber, TypeBoolean, TypeDate:
		return t
	}
	return TypeString
}

// ColumnSchema describes one column
type ColumnSchema struct {
	ColumnName    string       `json:"column_name"`
	InferredType  InferredType `json:"inferred_type"`
	AllowedValues []Value      `json:"allowed_values,omitempty"` // hint only, never enforced
}

// RawMatrix is the two-dimensional cell grid delivered by a source
type RawMatrix [][]Value

// MatrixFromStrings wraps formatted display values as string cells
func MatrixFromStrings(values [][]string) RawMatrix {
	out := make(RawMatrix, len(values))
	for i, row := range values {
		cells := make([]Value, len(row))
		for j, s := range row {
			cells[j] = NewString(s)
		}
		out[i] = cells
	}
	return out
}

// Clone returns a deep copy of the matrix
func (m RawMatrix) Clone() RawMatrix {
	out := make(RawMatrix, len(m))
	for i, row := range m {
		out[i] = append([]Value(nil), row...)
	}
	return out
}

// IssueLevel classifies the severity of a data-quality problem
type IssueLevel string

const (
	LevelError   IssueLevel = "error"
	LevelWarning IssueLevel = "warning"
	LevelInfo    IssueLevel = "info"
)

// Issue codes
const (
	CodeRequiredMissing = "REQUIRED_MISSING"
	CodeBooleanSuspect  = "BOOLEAN_SUSPECT"
	CodeNumberInvalid   = "NUMBER_INVALID"
	CodeBooleanInvalid  = "BOOLEAN_INVALID"
	CodeDateInvalid     = "DATE_INVALID"
)

// Issue is a single cell-level or row-level data-quality problem
type Issue struct {
	RowIndex      int          `json:"row_index"`
	ColumnName    string       `json:"column_name"`
	OriginalValue Value        `json:"original_value"`
	TargetType    InferredType `json:"target_type"`
	Message       string       `json:"message"`
	Level         IssueLevel   `json:"level"`
	Code          string       `json:"code"`
}

// QualityStats aggregates an issue list with the table shape.
// It is always recomputed from its inputs and never stored on its own.
type QualityStats struct {
	Rows     int `json:"rows"`
	Columns  int `json:"columns"`
	Cells    int `json:"cells"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}
