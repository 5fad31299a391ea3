// Package metadata holds the declarative per-entity field descriptions that
// drive GraphQL schema generation, plus their validation and registry.
package metadata

import "strings"

// FieldType is one entry of the closed field-type taxonomy.
type FieldType string

// Taxonomy entries. Aliases (int, integer, float, double, decimal, date,
// time, timestamp, id) canonicalize onto these via Canonical.
const (
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeDateTime FieldType = "datetime"
	TypeUUID     FieldType = "uuid"
	TypeJSON     FieldType = "json"
	TypeEnum     FieldType = "enum"
	TypeArray    FieldType = "array"
	TypeObject   FieldType = "object"
)

// typeAliases maps accepted spellings to their canonical taxonomy entry.
var typeAliases = map[FieldType]FieldType{
	TypeString:   TypeString,
	TypeText:     TypeText,
	"json":       TypeJSON,
	"number":     TypeNumber,
	"int":        TypeNumber,
	"integer":    TypeNumber,
	"float":      TypeFloat,
	"double":     TypeFloat,
	"decimal":    TypeFloat,
	"boolean":    TypeBoolean,
	"datetime":   TypeDateTime,
	"date":       TypeDateTime,
	"time":       TypeDateTime,
	"timestamp":  TypeDateTime,
	"uuid":       TypeUUID,
	"id":         TypeUUID,
	TypeEnum:     TypeEnum,
	TypeArray:    TypeArray,
	TypeObject:   TypeObject,
}

// Canonical resolves t to its canonical taxonomy entry. The second return is
// false when t is outside the taxonomy.
func (t FieldType) Canonical() (FieldType, bool) {
	canonical, ok := typeAliases[t]
	return canonical, ok
}

// IsNumeric reports whether t canonicalizes to an integer or float type.
func (t FieldType) IsNumeric() bool {
	c, ok := t.Canonical()
	return ok && (c == TypeNumber || c == TypeFloat)
}

// NormalizeEnumValue turns a permitted enum value into its wire-level member
// name: trimmed, spaces replaced with underscores, lower-cased. Validation
// rejects value lists whose members collide under this mapping.
func NormalizeEnumValue(value string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", "_"))
}

// RelationDefinition describes a link to another entity's records.
type RelationDefinition struct {
	Model        string `json:"model" bson:"model"`
	LocalField   string `json:"localField,omitempty" bson:"localField,omitempty"`
	ForeignField string `json:"foreignField,omitempty" bson:"foreignField,omitempty"`
	Type         string `json:"type,omitempty" bson:"type,omitempty"` // "one" or "many"
}

// FieldDefinition describes one field of an entity.
type FieldDefinition struct {
	Type           FieldType                  `json:"type" bson:"type"`
	Required       bool                       `json:"required,omitempty" bson:"required,omitempty"`
	DefaultValue   interface{}                `json:"defaultValue,omitempty" bson:"defaultValue,omitempty"`
	Description    string                     `json:"description,omitempty" bson:"description,omitempty"`
	Relation       *RelationDefinition        `json:"relation,omitempty" bson:"relation,omitempty"`
	Values         []string                   `json:"values,omitempty" bson:"values,omitempty"` // enum members, ordered
	Items          *FieldDefinition           `json:"items,omitempty" bson:"items,omitempty"`   // array element definition
	Fields         map[string]FieldDefinition `json:"fields,omitempty" bson:"fields,omitempty"` // object subfields
	SystemReserved bool                       `json:"systemReserved,omitempty" bson:"systemReserved,omitempty"`
}

// Subscriptions selects which entity event streams are exposed.
type Subscriptions struct {
	OnCreated bool `json:"onCreated,omitempty" bson:"onCreated,omitempty"`
	OnUpdated bool `json:"onUpdated,omitempty" bson:"onUpdated,omitempty"`
	OnDeleted bool `json:"onDeleted,omitempty" bson:"onDeleted,omitempty"`
}

// Metadata is the full declarative description of one entity.
type Metadata struct {
	Fields        map[string]FieldDefinition `json:"fields" bson:"fields"`
	Indexes       [][]string                 `json:"indexes,omitempty" bson:"indexes,omitempty"`
	Subscriptions *Subscriptions             `json:"subscriptions,omitempty" bson:"subscriptions,omitempty"`
	TenantScoped  bool                       `json:"tenantScoped,omitempty" bson:"tenantScoped,omitempty"`
}

// protectedFields are stamped by the system and must never be writable or
// filterable through generated input types.
var protectedFields = []string{"tenantId"}

// EnforceSystemFields marks protected field names as system reserved. It
// returns a copy; the input metadata is not mutated.
func EnforceSystemFields(md Metadata) Metadata {
	out := md
	out.Fields = make(map[string]FieldDefinition, len(md.Fields))
	for name, def := range md.Fields {
		out.Fields[name] = def
	}
	for _, name := range protectedFields {
		if def, ok := out.Fields[name]; ok {
			def.SystemReserved = true
			out.Fields[name] = def
		}
	}
	return out
}
