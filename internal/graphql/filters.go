package graphql

import (
	"strings"

	"github.com/graphql-go/graphql"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wize-platform/wizegraph/internal/metadata"
)

// Filter argument names are of the form <field>_<op>. An unrecognized suffix
// is treated as part of a literal field name, not an error; existing clients
// rely on flat equality arguments whose names happen to contain underscores.
var knownFilterOperators = map[string]struct{}{
	"eq": {}, "neq": {}, "lt": {}, "lte": {}, "gt": {}, "gte": {},
	"in": {}, "contains": {}, "startsWith": {}, "endsWith": {},
}

// operator suffix sets per value family.
var (
	comparableOps = []string{"eq", "neq", "lt", "lte", "gt", "gte", "in"}
	textOps       = []string{"eq", "neq", "in", "contains", "startsWith", "endsWith"}
	equalityOps   = []string{"eq", "neq"}
	membershipOps = []string{"eq", "neq", "in"}
)

// splitFilterArg splits a filter argument name into field path and operator.
// The operator is empty when the suffix is not a known operator.
func splitFilterArg(name string) (string, string) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 {
		return name, ""
	}
	op := name[idx+1:]
	if _, ok := knownFilterOperators[op]; ok {
		return name[:idx], op
	}
	return name, ""
}

// buildFilterType builds the generic filter input for one entity: each
// filterable field contributes a bare equality argument plus one argument
// per comparison operator suitable for its type.
func buildFilterType(key metadata.SchemaKey, md metadata.Metadata) (*graphql.InputObject, error) {
	fields, err := filterInputFields(md.Fields, key, "")
	if err != nil {
		return nil, err
	}
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   capitalize(key.Table) + "Filter",
		Fields: fields,
	}), nil
}

func filterInputFields(defs map[string]metadata.FieldDefinition, key metadata.SchemaKey, namePrefix string) (graphql.InputObjectConfigFieldMap, error) {
	fields := graphql.InputObjectConfigFieldMap{}

	for name, def := range defs {
		if def.SystemReserved {
			continue
		}

		canonical, ok := def.Type.Canonical()
		if !ok {
			continue
		}

		switch canonical {
		case metadata.TypeArray:
			// Array membership is expressed through the element field
			// filters; arrays themselves are not filterable.
			continue
		case metadata.TypeObject:
			nested, err := resolveObjectType(def, namePrefix+name, key, modeFilter)
			if err != nil {
				return nil, err
			}
			fields[name] = &graphql.InputObjectFieldConfig{Type: nested, Description: def.Description}
			continue
		}

		baseType, err := resolveFieldType(def, namePrefix+name, key, modeFilter)
		if err != nil {
			return nil, err
		}

		fields[name] = &graphql.InputObjectFieldConfig{Type: baseType, Description: def.Description}
		for _, op := range operatorsFor(canonical) {
			argType := baseType
			if op == "in" {
				argType = graphql.NewList(baseType)
			}
			fields[name+"_"+op] = &graphql.InputObjectFieldConfig{Type: argType}
		}
	}

	return fields, nil
}

func operatorsFor(canonical metadata.FieldType) []string {
	switch canonical {
	case metadata.TypeString, metadata.TypeText, metadata.TypeJSON, metadata.TypeUUID:
		return textOps
	case metadata.TypeNumber, metadata.TypeFloat, metadata.TypeDateTime:
		return comparableOps
	case metadata.TypeBoolean:
		return equalityOps
	case metadata.TypeEnum:
		return membershipOps
	default:
		return nil
	}
}

// TranslateFilter parses suffix-encoded filter arguments into a storage
// predicate. Fields absent from the entity's metadata are silently dropped,
// so clients cannot inject arbitrary storage fields. Nested object values
// and dotted field paths are resolved by walking object-typed definitions.
func TranslateFilter(input map[string]interface{}, md metadata.Metadata) bson.M {
	filter := bson.M{}
	translateFilterInto(filter, input, md.Fields, "")
	return filter
}

func translateFilterInto(out bson.M, input map[string]interface{}, defs map[string]metadata.FieldDefinition, prefix string) {
	for argName, value := range input {
		fieldPath, op := splitFilterArg(argName)

		def, ok := lookupFieldDef(defs, fieldPath)
		if !ok {
			continue
		}

		storageField := prefix + fieldPath

		if op == "" {
			// Nested object values recurse with a dotted prefix.
			canonical, _ := def.Type.Canonical()
			if canonical == metadata.TypeObject {
				if nested, ok := value.(map[string]interface{}); ok {
					translateFilterInto(out, nested, def.Fields, storageField+".")
					continue
				}
			}
			out[storageField] = value
			continue
		}

		out[storageField] = operatorExpression(op, value)
	}
}

func operatorExpression(op string, value interface{}) bson.M {
	switch op {
	case "eq":
		return bson.M{"$eq": value}
	case "neq":
		return bson.M{"$ne": value}
	case "lt":
		return bson.M{"$lt": value}
	case "lte":
		return bson.M{"$lte": value}
	case "gt":
		return bson.M{"$gt": value}
	case "gte":
		return bson.M{"$gte": value}
	case "in":
		return bson.M{"$in": value}
	case "contains":
		return bson.M{"$regex": stringValue(value), "$options": "i"}
	case "startsWith":
		return bson.M{"$regex": "^" + stringValue(value), "$options": "i"}
	case "endsWith":
		return bson.M{"$regex": stringValue(value) + "$", "$options": "i"}
	default:
		return bson.M{"$" + op: value}
	}
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// lookupFieldDef resolves a possibly dotted field path against the metadata,
// walking into object-typed definitions.
func lookupFieldDef(defs map[string]metadata.FieldDefinition, path string) (metadata.FieldDefinition, bool) {
	parts := strings.Split(path, ".")
	current := defs
	for i, part := range parts {
		def, ok := current[part]
		if !ok {
			return metadata.FieldDefinition{}, false
		}
		if i == len(parts)-1 {
			return def, true
		}
		canonical, _ := def.Type.Canonical()
		if canonical != metadata.TypeObject {
			return metadata.FieldDefinition{}, false
		}
		current = def.Fields
	}
	return metadata.FieldDefinition{}, false
}
