package playbook

import (
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/FyraLabs/readymade/internal/errs"
)

// playbookSchema is reflected once from the Playbook struct. encoding/json
// cannot distinguish a field that was present in the source JSON from one
// that was simply absent when both decode to the zero value, so Decode
// walks the result against this schema's Required lists to catch the
// difference and name the offending field.
var playbookSchema = jsonschema.Reflect(&Playbook{})

// topLevelSchema is deliberately hand-written rather than reflected: it
// only names the top-level required keys and leaves the discriminated
// union fields (installation_type, copy_mode) as bare "object", so it
// never has to express their oneOf branches. It catches a malformed or
// non-object document before json.Unmarshal gets a chance to silently
// zero-value its way past a missing key.
const topLevelSchema = `{
	"type": "object",
	"required": ["destination_disk", "destination_label", "installation_type", "copy_mode", "distro", "locale"],
	"properties": {
		"destination_disk": {"type": "string"},
		"destination_label": {"type": "string"},
		"installation_type": {"type": "object"},
		"copy_mode": {"type": "object"},
		"distro": {"type": "object"},
		"locale": {"type": "string"}
	}
}`

// validateTopLevelShape runs raw against topLevelSchema before it is
// unmarshaled, surfacing a malformed document (wrong top-level type,
// missing required key) as ConfigShape with gojsonschema's own
// field-by-field description of what went wrong.
func validateTopLevelShape(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(topLevelSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return errs.Wrap(errs.ConfigShape, err, "validating playbook document shape")
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errs.New(errs.ConfigShape, "playbook document shape invalid: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// checkRequiredFields walks v (a pointer to a decoded struct) and reports
// the first field that is required - either by lacking "omitempty" on its
// json tag, or by appearing in the reflected schema's Required list - but
// still holds its zero value. Nested structs, pointers to structs, and
// slices of structs are walked recursively.
func checkRequiredFields(v interface{}, schema *jsonschema.Schema) error {
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return nil
	}
	elem := value.Elem()
	t := elem.Type()

	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		sf := t.Field(i)

		// A present-but-empty nested struct/slice is valid (e.g. an
		// explicit "postinstall": []); only recurse to catch a required
		// field *inside* it that is itself missing. Whether this field's
		// own presence is required is still checked below regardless of
		// kind, since only a truly absent key leaves it at the nil zero
		// value.
		switch field.Kind() {
		case reflect.Struct:
			if err := checkRequiredFields(field.Addr().Interface(), schema); err != nil {
				return err
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				if err := checkRequiredFields(field.Interface(), schema); err != nil {
					return err
				}
			}
		case reflect.Slice:
			for j := 0; j < field.Len(); j++ {
				el := field.Index(j)
				if el.Kind() == reflect.Struct {
					if err := checkRequiredFields(el.Addr().Interface(), schema); err != nil {
						return err
					}
				}
			}
		}

		jsonTag, hasJSON := sf.Tag.Lookup("json")
		required := hasJSON && !strings.Contains(jsonTag, "omitempty")
		if !required && schema != nil {
			for _, name := range schema.Required {
				if name == jsonFieldName(jsonTag, sf.Name) {
					required = true
					break
				}
			}
		}
		if required && field.IsZero() {
			return errs.New(errs.ConfigShape, "playbook field %q is required but missing or empty", jsonFieldName(jsonTag, sf.Name))
		}
	}
	return nil
}

func jsonFieldName(tag, fallback string) string {
	if tag == "" {
		return fallback
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return fallback
	}
	return name
}

// validateShape checks a decoded Playbook's required fields, per
// checkRequiredFields, naming the first offender as a ConfigShape error.
func validateShape(p *Playbook) error {
	return checkRequiredFields(p, playbookSchema)
}
