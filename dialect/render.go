package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// renderCommon renders the values both dialects spell the same way. The
// second result is false for byte slices, whose literal syntax differs.
func renderCommon(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "NULL", true
	case string:
		return quote(val), true
	case bool:
		if val {
			return "TRUE", true
		}
		return "FALSE", true
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), true
	case float32, float64:
		return strconv.FormatFloat(reflect.ValueOf(val).Float(), 'f', -1, 64), true
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05.000000") + "'", true
	case []byte:
		return "", false
	case fmt.Stringer:
		return quote(val.String()), true
	default:
		return quote(fmt.Sprint(val)), true
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
