package wire

// FieldType is the MySQL column type code (spec §3 "Column descriptor").
// Ground: go-sql-driver/mysql's fieldType byte constants.
type FieldType byte

const (
	FieldTypeDecimal FieldType = iota
	FieldTypeTiny
	FieldTypeShort
	FieldTypeLong
	FieldTypeFloat
	FieldTypeDouble
	FieldTypeNull
	FieldTypeTimestamp
	FieldTypeLongLong
	FieldTypeInt24
	FieldTypeDate
	FieldTypeTime
	FieldTypeDateTime
	FieldTypeYear
	FieldTypeNewDate
	FieldTypeVarChar
	FieldTypeBit
)

const (
	FieldTypeJSON FieldType = iota + 0xf5
	FieldTypeNewDecimal
	FieldTypeEnum
	FieldTypeSet
	FieldTypeTinyBLOB
	FieldTypeMediumBLOB
	FieldTypeLongBLOB
	FieldTypeBLOB
	FieldTypeVarString
	FieldTypeString
	FieldTypeGeometry
)

// FieldFlag carries the column-descriptor flag bits relevant to decoding
// (only UNSIGNED and NOT_NULL are inspected by this library).
type FieldFlag uint16

const (
	FlagNotNull     FieldFlag = 1 << 0
	FlagPriKey      FieldFlag = 1 << 1
	FlagUniqueKey   FieldFlag = 1 << 2
	FlagMultipleKey FieldFlag = 1 << 3
	FlagUnsigned    FieldFlag = 1 << 5
	FlagAutoIncr    FieldFlag = 1 << 9
)

// Column is the decoded subset of a column-definition packet: enough to
// pick a row decoder. Spec §3: "enough to choose a row-decoder; other
// fields ... are parsed and discarded."
type Column struct {
	Name      string
	FieldType FieldType
	Flags     FieldFlag
	Charset   uint16
	Decimals  byte
}

// Unsigned reports whether the column's UNSIGNED flag is set.
func (c Column) Unsigned() bool { return c.Flags&FlagUnsigned != 0 }

// NotNull reports whether the column's NOT NULL flag is set.
func (c Column) NotNull() bool { return c.Flags&FlagNotNull != 0 }
