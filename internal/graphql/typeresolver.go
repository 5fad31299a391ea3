// Package graphql synthesizes GraphQL type graphs and CRUD + subscription
// resolvers from entity metadata, keyed by tenant/app/database/table.
package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-platform/wizegraph/internal/apierror"
	"github.com/wize-platform/wizegraph/internal/metadata"
)

// typeMode selects which flavor of type a field definition resolves to.
type typeMode string

const (
	modeOutput typeMode = "output"
	modeInput  typeMode = "input"
	modeFilter typeMode = "filter"
	modeSort   typeMode = "sort"
)

// nameSuffix distinguishes generated nested type names across modes so one
// field can appear in output, input, filter and sort graphs without name
// collisions.
func (m typeMode) nameSuffix() string {
	switch m {
	case modeInput:
		return "Input"
	case modeFilter:
		return "Filter"
	case modeSort:
		return "Sort"
	default:
		return ""
	}
}

// sortDirectionEnum is shared across all generated schemas; graphql-go
// requires a single instance per type name within a schema.
var sortDirectionEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "SortDirection",
	Values: graphql.EnumValueConfigMap{
		"ASC":  &graphql.EnumValueConfig{Value: "ASC"},
		"DESC": &graphql.EnumValueConfig{Value: "DESC"},
	},
})

// pagingInputType is the shared limit/offset paging input.
var pagingInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "Paging",
	Fields: graphql.InputObjectConfigFieldMap{
		"limit":  &graphql.InputObjectFieldConfig{Type: graphql.Int, DefaultValue: defaultPageLimit},
		"offset": &graphql.InputObjectFieldConfig{Type: graphql.Int, DefaultValue: 0},
	},
})

// resolveFieldType maps one abstract field definition to a concrete type
// node for the requested mode. It is a pure function of its inputs: no side
// effects, deterministic for identical arguments, which is what makes the
// results safe to cache.
func resolveFieldType(def metadata.FieldDefinition, fieldName string, key metadata.SchemaKey, mode typeMode) (graphql.Type, error) {
	canonical, ok := def.Type.Canonical()
	if !ok {
		return nil, apierror.NewUnsupportedType("unsupported field type '%s' for field '%s' in schema '%s'", def.Type, fieldName, key.Table)
	}

	if mode == modeSort && canonical != metadata.TypeObject {
		return sortDirectionEnum, nil
	}

	switch canonical {
	case metadata.TypeString, metadata.TypeText, metadata.TypeJSON:
		return graphql.String, nil
	case metadata.TypeUUID:
		return graphql.ID, nil
	case metadata.TypeDateTime:
		return graphql.DateTime, nil
	case metadata.TypeNumber:
		return graphql.Int, nil
	case metadata.TypeFloat:
		return graphql.Float, nil
	case metadata.TypeBoolean:
		return graphql.Boolean, nil
	case metadata.TypeEnum:
		return resolveEnumType(def, fieldName, key, mode)
	case metadata.TypeArray:
		if def.Items == nil {
			return nil, apierror.NewUnsupportedType("array field '%s' in schema '%s' has no items definition", fieldName, key.Table)
		}
		inner, err := resolveFieldType(*def.Items, fieldName, key, mode)
		if err != nil {
			return nil, err
		}
		return graphql.NewList(inner), nil
	case metadata.TypeObject:
		return resolveObjectType(def, fieldName, key, mode)
	default:
		return nil, apierror.NewUnsupportedType("unsupported field type '%s' for field '%s' in schema '%s'", def.Type, fieldName, key.Table)
	}
}

// resolveEnumType builds a named enumeration scoped by table and field. Each
// permitted value is normalized to become the wire-level member name, mapping
// back to the original string value.
func resolveEnumType(def metadata.FieldDefinition, fieldName string, key metadata.SchemaKey, mode typeMode) (graphql.Type, error) {
	if len(def.Values) == 0 {
		return nil, apierror.NewUnsupportedType("enum field '%s' in schema '%s' has no values", fieldName, key.Table)
	}

	values := graphql.EnumValueConfigMap{}
	for _, value := range def.Values {
		values[metadata.NormalizeEnumValue(value)] = &graphql.EnumValueConfig{Value: value}
	}

	return graphql.NewEnum(graphql.EnumConfig{
		Name:        fmt.Sprintf("%s_%s_Enum%s", capitalize(key.Table), fieldName, mode.nameSuffix()),
		Values:      values,
		Description: def.Description,
	}), nil
}

// resolveObjectType builds a uniquely-named nested composite type for an
// object-typed field.
func resolveObjectType(def metadata.FieldDefinition, fieldName string, key metadata.SchemaKey, mode typeMode) (graphql.Type, error) {
	if len(def.Fields) == 0 {
		return nil, apierror.NewUnsupportedType("object field '%s' in schema '%s' has no subfields", fieldName, key.Table)
	}

	name := fmt.Sprintf("%s_%s_Object%s", capitalize(key.Table), fieldName, mode.nameSuffix())

	if mode == modeOutput {
		fields := graphql.Fields{}
		for sub, subDef := range def.Fields {
			subType, err := resolveFieldType(subDef, fieldName+"_"+sub, key, mode)
			if err != nil {
				return nil, err
			}
			fields[sub] = &graphql.Field{Type: subType, Description: subDef.Description}
		}
		return graphql.NewObject(graphql.ObjectConfig{Name: name, Fields: fields, Description: def.Description}), nil
	}

	if mode == modeFilter {
		fields, err := filterInputFields(def.Fields, key, fieldName+"_")
		if err != nil {
			return nil, err
		}
		return graphql.NewInputObject(graphql.InputObjectConfig{Name: name, Fields: fields, Description: def.Description}), nil
	}

	// input and sort modes share the plain recursive shape.
	fields := graphql.InputObjectConfigFieldMap{}
	for sub, subDef := range def.Fields {
		if subDef.SystemReserved {
			continue
		}
		subType, err := resolveFieldType(subDef, fieldName+"_"+sub, key, mode)
		if err != nil {
			return nil, err
		}
		fields[sub] = &graphql.InputObjectFieldConfig{Type: subType, Description: subDef.Description}
	}
	return graphql.NewInputObject(graphql.InputObjectConfig{Name: name, Fields: fields, Description: def.Description}), nil
}

// auditFields are stamped by mutations and exposed on output types when the
// metadata does not define them explicitly.
var auditFields = map[string]graphql.Output{
	"tenantId":  graphql.String,
	"createdAt": graphql.DateTime,
	"createdBy": graphql.String,
	"updatedAt": graphql.DateTime,
	"updatedBy": graphql.String,
}

// buildObjectType builds the output object type for one entity, including
// the identifier and audit fields.
func buildObjectType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.Object, error) {
	fields := graphql.Fields{}

	for name, def := range md.Fields {
		fieldType, err := resolveFieldType(def, name, key, modeOutput)
		if err != nil {
			return nil, err
		}
		fields[name] = &graphql.Field{Type: fieldType, Description: def.Description}
	}

	if _, ok := fields["id"]; !ok {
		fields["id"] = &graphql.Field{
			Type: graphql.ID,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				doc, ok := p.Source.(map[string]interface{})
				if !ok {
					return nil, nil
				}
				return documentID(doc), nil
			},
		}
	}

	for name, fieldType := range auditFields {
		if _, ok := fields[name]; !ok {
			fields[name] = &graphql.Field{Type: fieldType}
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   capitalize(key.Table),
		Fields: fields,
	}), nil
}

// documentID extracts the primary identifier of a stored document as a
// string.
func documentID(doc map[string]interface{}) interface{} {
	raw, ok := doc["_id"]
	if !ok {
		raw, ok = doc["id"]
		if !ok {
			return nil
		}
	}
	if oid, ok := raw.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return raw
}

// buildInputType builds the mutation input ("model") type; system-reserved
// fields are excluded.
func buildInputType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.InputObject, error) {
	fields := graphql.InputObjectConfigFieldMap{}

	for name, def := range md.Fields {
		if def.SystemReserved {
			continue
		}
		fieldType, err := resolveFieldType(def, name, key, modeInput)
		if err != nil {
			return nil, err
		}
		fields[name] = &graphql.InputObjectFieldConfig{
			Type:         fieldType,
			DefaultValue: def.DefaultValue,
			Description:  def.Description,
		}
	}

	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   capitalize(key.Table) + "Input",
		Fields: fields,
	}), nil
}

// buildSortType builds the per-field ASC/DESC sort input.
func buildSortType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.InputObject, error) {
	fields := graphql.InputObjectConfigFieldMap{}

	for name, def := range md.Fields {
		if def.SystemReserved {
			continue
		}
		fieldType, err := resolveFieldType(def, name, key, modeSort)
		if err != nil {
			return nil, err
		}
		fields[name] = &graphql.InputObjectFieldConfig{Type: fieldType}
	}

	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   capitalize(key.Table) + "Sort",
		Fields: fields,
	}), nil
}
