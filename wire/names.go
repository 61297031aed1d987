package wire

import "strings"

type typeName struct {
	t        Type
	unsigned bool
}

// dbTypeNames maps database type names, as reported by drivers through
// ColumnType.DatabaseTypeName, to protocol type codes.
var dbTypeNames = map[string]typeName{
	// ===================
	// INTEGERS
	// ===================
	"TINYINT":            {TypeTiny, false},
	"BOOL":               {TypeTiny, false},
	"BOOLEAN":            {TypeTiny, false},
	"SMALLINT":           {TypeShort, false},
	"MEDIUMINT":          {TypeInt24, false},
	"INT":                {TypeLong, false},
	"INTEGER":            {TypeLong, false},
	"BIGINT":             {TypeLongLong, false},
	"YEAR":               {TypeYear, true},
	"UNSIGNED TINYINT":   {TypeTiny, true},
	"UNSIGNED SMALLINT":  {TypeShort, true},
	"UNSIGNED MEDIUMINT": {TypeInt24, true},
	"UNSIGNED INT":       {TypeLong, true},
	"UNSIGNED BIGINT":    {TypeLongLong, true},

	// PostgreSQL spellings
	"INT2":        {TypeShort, false},
	"INT4":        {TypeLong, false},
	"INT8":        {TypeLongLong, false},
	"SERIAL":      {TypeLong, false},
	"BIGSERIAL":   {TypeLongLong, false},
	"SMALLSERIAL": {TypeShort, false},

	// ===================
	// FLOATING POINT / DECIMAL
	// ===================
	"FLOAT":            {TypeFloat, false},
	"REAL":             {TypeFloat, false},
	"FLOAT4":           {TypeFloat, false},
	"DOUBLE":           {TypeDouble, false},
	"FLOAT8":           {TypeDouble, false},
	"DOUBLE PRECISION": {TypeDouble, false},
	"DECIMAL":          {TypeNewDecimal, false},
	"NUMERIC":          {TypeNewDecimal, false},
	"UNSIGNED DECIMAL": {TypeNewDecimal, true},

	// ===================
	// CHARACTER DATA
	// ===================
	"CHAR":              {TypeString, false},
	"BPCHAR":            {TypeString, false},
	"CHARACTER":         {TypeString, false},
	"VARCHAR":           {TypeVarString, false},
	"CHARACTER VARYING": {TypeVarString, false},
	"TEXT":              {TypeVarString, false},
	"TINYTEXT":          {TypeVarString, false},
	"MEDIUMTEXT":        {TypeVarString, false},
	"LONGTEXT":          {TypeVarString, false},
	"NAME":              {TypeVarString, false},
	"CITEXT":            {TypeVarString, false},
	"ENUM":              {TypeVarString, false},
	"SET":               {TypeVarString, false},

	// ===================
	// BINARY DATA
	// ===================
	"BINARY":     {TypeBlob, false},
	"VARBINARY":  {TypeBlob, false},
	"BLOB":       {TypeBlob, false},
	"TINYBLOB":   {TypeTinyBlob, false},
	"MEDIUMBLOB": {TypeMediumBlob, false},
	"LONGBLOB":   {TypeLongBlob, false},
	"BYTEA":      {TypeBlob, false},
	"BIT":        {TypeBit, true},
	"VARBIT":     {TypeBit, true},
	"GEOMETRY":   {TypeBlob, false},
	"UUID":       {TypeVarString, false},

	// ===================
	// TEMPORAL
	// ===================
	"DATE":        {TypeDate, false},
	"DATETIME":    {TypeDatetime, false},
	"TIMESTAMP":   {TypeTimestamp, false},
	"TIMESTAMPTZ": {TypeTimestamp, false},
	"TIME":        {TypeTime, false},
	"INTERVAL":    {TypeTime, false},

	// ===================
	// DOCUMENTS
	// ===================
	"JSON":  {TypeJSON, false},
	"JSONB": {TypeJSON, false},
}

// TypeByName returns the protocol type for a database type name. Parameterized
// names such as VARCHAR(255) or DECIMAL(10,2) resolve through their base name.
// Unknown names fall back to VAR_STRING and report false.
func TypeByName(name string) (Type, bool, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if tn, ok := dbTypeNames[upper]; ok {
		return tn.t, tn.unsigned, true
	}
	if idx := strings.IndexByte(upper, '('); idx != -1 {
		if tn, ok := dbTypeNames[strings.TrimSpace(upper[:idx])]; ok {
			return tn.t, tn.unsigned || strings.HasSuffix(upper, "UNSIGNED"), true
		}
	}
	if base, ok := strings.CutSuffix(upper, " UNSIGNED"); ok {
		if tn, ok := dbTypeNames[base]; ok {
			return tn.t, true, true
		}
	}
	return TypeVarString, false, false
}
