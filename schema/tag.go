package schema

import (
	"strings"
	"sync"

	"github.com/Konsultn-Engineering/stmtbind/codec"
)

// ParsedTag is the parsed form of a field's struct tag.
type ParsedTag struct {
	// ColumnName is the explicit or derived column name.
	ColumnName string
	// Skip excludes the field from mapping (db:"-").
	Skip bool
	// Type overrides the codec type id inferred from the Go type.
	Type codec.TypeID
	// SelectedBy names a sibling field whose value decides the concrete
	// type of this field once the sibling has been populated.
	SelectedBy string
	// NotNull rejects NULL for the field instead of storing the zero value.
	NotNull bool
}

// TagParser parses and caches struct tags.
//
// Supported tag syntax:
//
//	`db:"column_name"`                    // Basic column mapping
//	`db:"column:custom_name"`             // Explicit column name
//	`db:"column:id;type:uuid"`            // Codec type override
//	`db:"payload;selected_by:kind"`       // Type chosen from a sibling field
//	`db:"not_null"`                       // NULL is an error
//	`db:"-"`                              // Skip field entirely
type TagParser struct {
	tagName        string
	namingStrategy NamingStrategy
	cache          map[string]*ParsedTag
	cacheMu        sync.RWMutex
}

// NewTagParser returns a parser reading tagName and deriving missing column
// names with namingStrategy.
func NewTagParser(tagName string, namingStrategy NamingStrategy) *TagParser {
	return &TagParser{
		tagName:        tagName,
		namingStrategy: namingStrategy,
		cache:          make(map[string]*ParsedTag, 128),
	}
}

// ParseTag parses the tag of the field named fieldName.
func (p *TagParser) ParseTag(fieldName string, tag string) (*ParsedTag, error) {
	if tag == "" {
		return &ParsedTag{ColumnName: p.namingStrategy.ColumnName(fieldName)}, nil
	}

	cacheKey := fieldName + ":" + tag
	p.cacheMu.RLock()
	if cached, exists := p.cache[cacheKey]; exists {
		p.cacheMu.RUnlock()
		return cached, nil
	}
	p.cacheMu.RUnlock()

	parsed, err := p.parseTagValue(fieldName, tag)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	p.cache[cacheKey] = parsed
	p.cacheMu.Unlock()
	return parsed, nil
}

func (p *TagParser) parseTagValue(fieldName, tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{ColumnName: p.namingStrategy.ColumnName(fieldName)}
	if !strings.ContainsAny(tagValue, ";:") {
		parsed.ColumnName = tagValue
		return parsed, nil
	}

	for i, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, hasValue := strings.Cut(option, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !hasValue {
			if p.parseFlag(parsed, key) {
				continue
			}
			if i == 0 {
				// A leading bare word is the column name.
				parsed.ColumnName = key
				continue
			}
			return nil, ErrInvalidTag.New(fieldName, "unknown option "+key)
		}
		if err := p.parseKeyValue(parsed, fieldName, key, value); err != nil {
			return nil, err
		}
	}
	return parsed, nil
}

func (p *TagParser) parseFlag(tag *ParsedTag, flag string) bool {
	switch flag {
	case "not_null", "not null":
		tag.NotNull = true
	case "null":
		tag.NotNull = false
	default:
		return false
	}
	return true
}

func (p *TagParser) parseKeyValue(tag *ParsedTag, fieldName, key, value string) error {
	if value == "" {
		return ErrInvalidTag.New(fieldName, "empty value for "+key)
	}
	switch key {
	case "column", "name":
		tag.ColumnName = value
	case "type":
		tag.Type = codec.TypeID(value)
	case "selected_by":
		tag.SelectedBy = value
	default:
		// Unknown key:value pairs are ignored.
	}
	return nil
}

// ClearCache removes all cached parsed tags.
func (p *TagParser) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	clear(p.cache)
}

// IsSkipped returns true if this field should be skipped entirely.
func (tag *ParsedTag) IsSkipped() bool {
	return tag.Skip
}
