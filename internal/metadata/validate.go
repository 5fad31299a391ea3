package metadata

import (
	"github.com/wize-platform/wizegraph/internal/apierror"
)

// Validate checks md against the allowed field-type taxonomy and structural
// constraints. It must pass before md is registered or any type generation
// happens; errors name the offending field.
func Validate(table string, md Metadata) error {
	if len(md.Fields) == 0 {
		return apierror.NewValidation("schema '%s' must define at least one field", table)
	}

	for field, def := range md.Fields {
		if err := validateField(table, field, def); err != nil {
			return err
		}
	}

	return nil
}

func validateField(table, field string, def FieldDefinition) error {
	canonical, ok := def.Type.Canonical()
	if !ok {
		return apierror.NewValidation("invalid type '%s' for field '%s' in schema '%s'", def.Type, field, table)
	}

	switch canonical {
	case TypeArray:
		if def.Items == nil || def.Items.Type == "" {
			return apierror.NewValidation("array field '%s' in schema '%s' must define items with a type", field, table)
		}
		if err := validateField(table, field+".items", *def.Items); err != nil {
			return err
		}
	case TypeObject:
		if len(def.Fields) == 0 {
			return apierror.NewValidation("object field '%s' in schema '%s' must define subfields", field, table)
		}
		for sub, subDef := range def.Fields {
			if err := validateField(table, field+"."+sub, subDef); err != nil {
				return err
			}
		}
	case TypeEnum:
		if len(def.Values) == 0 {
			return apierror.NewValidation("enum field '%s' in schema '%s' must define a non-empty values list", field, table)
		}
		seen := make(map[string]string, len(def.Values))
		for _, value := range def.Values {
			normalized := NormalizeEnumValue(value)
			if prev, ok := seen[normalized]; ok {
				return apierror.NewValidation("enum field '%s' in schema '%s' has values '%s' and '%s' that collide after normalization", field, table, prev, value)
			}
			seen[normalized] = value
		}
	}

	return nil
}
