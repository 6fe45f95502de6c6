package openapi

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-intake/pkg/validation"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// ValuesSchema describes the nested values of a draft. Every property is
// optional because drafts are saved incomplete; rule constraints such as
// patterns and enumerations are carried over.
func ValuesSchema(def wizard.Definition) *openapi3.Schema {
	root := openapi3.NewObjectSchema()
	for _, page := range def.Pages {
		addFields(root, page.Fields())
	}
	for _, path := range mirroredPaths(def) {
		ensure(root, strings.Split(path, "."), openapi3.NewStringSchema())
	}
	for _, page := range def.Pages {
		applyRules(root, page.Schema.Rules(), nil)
	}
	return root
}

func addFields(obj *openapi3.Schema, fields []wizard.Field) {
	for _, field := range fields {
		segments := strings.Split(field.Path, ".")
		ensure(obj, segments, fieldSchema(field))
	}
}

func fieldSchema(field wizard.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch field.Type {
	case wizard.FieldCheckbox:
		s = openapi3.NewBoolSchema()
	case wizard.FieldList:
		item := openapi3.NewObjectSchema()
		addFields(item, field.Items)
		s = openapi3.NewArraySchema().WithItems(item)
	case wizard.FieldDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	case wizard.FieldSelect, wizard.FieldRadio:
		s = openapi3.NewStringSchema()
		if len(field.Options) > 0 {
			enum := make([]any, 0, len(field.Options))
			for _, option := range field.Options {
				enum = append(enum, option)
			}
			s = s.WithEnum(enum...)
		}
	default:
		s = openapi3.NewStringSchema()
	}
	s.Title = field.Label
	s.Description = field.Help
	return s
}

// ensure places leaf at segments below obj, creating intermediate objects.
// An existing leaf is kept.
func ensure(obj *openapi3.Schema, segments []string, leaf *openapi3.Schema) {
	node := obj
	for i, segment := range segments {
		if node.Properties == nil {
			node.Properties = openapi3.Schemas{}
		}
		existing, ok := node.Properties[segment]
		last := i == len(segments)-1
		if last {
			if !ok || existing.Value == nil {
				node.Properties[segment] = openapi3.NewSchemaRef("", leaf)
			}
			return
		}
		if !ok || existing.Value == nil {
			child := openapi3.NewObjectSchema()
			node.Properties[segment] = openapi3.NewSchemaRef("", child)
			node = child
			continue
		}
		node = existing.Value
	}
}

// lookup follows segments through properties, with "*" stepping into array
// items.
func lookup(obj *openapi3.Schema, segments []string) *openapi3.Schema {
	node := obj
	for _, segment := range segments {
		if node == nil {
			return nil
		}
		if segment == "*" {
			if node.Items == nil {
				return nil
			}
			node = node.Items.Value
			continue
		}
		next, ok := node.Properties[segment]
		if !ok {
			return nil
		}
		node = next.Value
	}
	return node
}

func applyRules(root *openapi3.Schema, rules []validation.Rule, prefix []string) {
	for _, rule := range rules {
		segments := append(append([]string(nil), prefix...), strings.Split(rule.Path, ".")...)
		node := lookup(root, segments)
		if node == nil {
			continue
		}
		if rule.Pattern != "" {
			node.Pattern = rule.Pattern
		}
		if rule.MinLength > 0 {
			node.MinLength = uint64(rule.MinLength)
		}
		if rule.MaxLength > 0 {
			max := uint64(rule.MaxLength)
			node.MaxLength = &max
		}
		if rule.MinItems > 0 {
			node.MinItems = uint64(rule.MinItems)
		}
		switch rule.Format {
		case validation.FormatEmail, validation.FormatDate, validation.FormatUUID:
			node.Format = string(rule.Format)
		}
		if len(rule.OneOf) > 0 && len(node.Enum) == 0 {
			for _, option := range rule.OneOf {
				node.Enum = append(node.Enum, option)
			}
		}
		if len(rule.Each) > 0 {
			applyRules(root, rule.Each, append(segments, "*"))
		}
	}
}

func mirroredPaths(def wizard.Definition) []string {
	var out []string
	for _, mirror := range def.Bindings {
		for target, source := range mirror.Copies {
			out = append(out, target, source)
		}
	}
	return out
}

func sharedSchemas() map[string]*openapi3.Schema {
	entry := openapi3.NewObjectSchema().
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("anchor", openapi3.NewStringSchema())

	outcome := openapi3.NewObjectSchema().
		WithProperty("from", openapi3.NewIntegerSchema()).
		WithProperty("to", openapi3.NewIntegerSchema()).
		WithProperty("moved", openapi3.NewBoolSchema()).
		WithProperty("errors", openapi3.NewArraySchema().WithItems(entry)).
		WithProperty("exit", openapi3.NewStringSchema())

	fields := openapi3.NewObjectSchema().
		WithProperty("values", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	fields.Required = []string{"values"}

	return map[string]*openapi3.Schema{
		"ErrorEntry":    entry,
		"Outcome":       outcome,
		"FieldsRequest": fields,
	}
}

func pageStateSchema(shared map[string]*openapi3.Schema) *openapi3.Schema {
	page := openapi3.NewObjectSchema().
		WithProperty("slug", openapi3.NewStringSchema()).
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(string(wizard.KindForm), string(wizard.KindReview))).
		WithProperty("index", openapi3.NewIntegerSchema()).
		WithProperty("total", openapi3.NewIntegerSchema())

	return openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewUUIDSchema()).
		WithProperty("kind", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("revision", openapi3.NewInt64Schema()).
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("page", page).
		WithProperty("fields", openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().WithAnyAdditionalProperties())).
		WithProperty("values", openapi3.NewObjectSchema()).
		WithProperty("disabled", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("errors", openapi3.NewArraySchema().WithItems(shared["ErrorEntry"]))
}
