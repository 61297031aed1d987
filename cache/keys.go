// Package cache holds the LRU caches shared by an engine: parsed templates,
// prepared statements and result mapping plans.
package cache

import (
	"reflect"

	"github.com/Konsultn-Engineering/stmtbind/utils"
)

// TemplateKey identifies a template parsed for a dialect.
func TemplateKey(dialect, text string) uint64 {
	return utils.Fingerprint(dialect, text)
}

// StatementKey identifies prepared statement text.
func StatementKey(text string) uint64 {
	return utils.U64(text)
}

// PlanKey identifies a mapping plan: a destination type and an ordered
// column set.
type PlanKey struct {
	Type    reflect.Type
	Columns uint64
}

// NewPlanKey returns the key of a plan mapping columns onto t.
func NewPlanKey(t reflect.Type, columns []string) PlanKey {
	return PlanKey{Type: t, Columns: utils.Fingerprint(columns...)}
}
