package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-intake/pkg/wizard"
)

// Info names the document.
type Info struct {
	Title   string
	Version string
}

const schemaPrefix = "#/components/schemas/"

// Build returns a validated document covering every definition.
func Build(ctx context.Context, defs []wizard.Definition, info Info) (*openapi3.T, error) {
	if info.Title == "" {
		info.Title = "Intake API"
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	skeleton, err := json.Marshal(map[string]any{
		"openapi":    "3.0.3",
		"info":       map[string]string{"title": info.Title, "version": info.Version},
		"paths":      map[string]any{},
		"components": map[string]any{"schemas": map[string]any{}},
	})
	if err != nil {
		return nil, err
	}
	doc, err := openapi3.NewLoader().LoadFromData(skeleton)
	if err != nil {
		return nil, fmt.Errorf("openapi: skeleton: %w", err)
	}

	shared := sharedSchemas()
	for name, schema := range shared {
		doc.Components.Schemas[name] = openapi3.NewSchemaRef("", schema)
	}

	for _, def := range defs {
		if err := def.Check(); err != nil {
			return nil, err
		}
		addWizard(doc, def, shared)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: invalid document: %w", err)
	}
	return doc, nil
}

// Handler serves doc as JSON.
func Handler(doc *openapi3.T) (http.Handler, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: encode: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}), nil
}

func addWizard(doc *openapi3.T, def wizard.Definition, shared map[string]*openapi3.Schema) {
	prefix := typeName(def.Name)
	valuesName := prefix + "Values"
	stateName := prefix + "State"

	values := ValuesSchema(def)
	values.Title = def.Name + " draft values"
	doc.Components.Schemas[valuesName] = openapi3.NewSchemaRef("", values)

	state := pageStateSchema(shared)
	state.Properties["values"] = ref(valuesName, values)
	doc.Components.Schemas[stateName] = openapi3.NewSchemaRef("", state)
	stateRef := ref(stateName, state)

	action := openapi3.NewObjectSchema().
		WithProperty("outcome", shared["Outcome"]).
		WithPropertyRef("state", stateRef)
	actionName := prefix + "ActionResponse"
	doc.Components.Schemas[actionName] = openapi3.NewSchemaRef("", action)
	actionRef := ref(actionName, action)

	base := strings.TrimRight(def.BasePath, "/")
	if base == "" {
		base = "/" + def.Name
	}
	slugs := make([]string, 0, len(def.Pages))
	for _, page := range def.Pages {
		slugs = append(slugs, page.Slug)
	}
	tag := def.Name

	create := operation(def.Name+".create", "Start a new draft", tag)
	create.Responses = responses(
		status(http.StatusCreated, "Draft created; Location is its first page", stateRef),
		status(http.StatusUnauthorized, "No user on the request", nil),
	)
	doc.AddOperation(base, http.MethodPost, create)

	page := operation(def.Name+".page", "Resume the draft at a page", tag)
	page.AddParameter(idParameter())
	page.AddParameter(openapi3.NewPathParameter("page").
		WithSchema(openapi3.NewStringSchema()).
		WithDescription("One of: "+strings.Join(slugs, ", ")))
	page.Responses = responses(
		status(http.StatusOK, "Page state, or the review page as HTML when asked for", stateRef),
		status(http.StatusFound, "Unknown page; redirected to the first page", nil),
		status(http.StatusNotFound, "No such draft", nil),
		status(http.StatusGone, "Draft already submitted", nil),
	)
	doc.AddOperation(base+"/{id}/{page}", http.MethodGet, page)

	fields := operation(def.Name+".fields", "Set field values by dotted path", tag)
	fields.AddParameter(idParameter())
	fields.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(ref("FieldsRequest", shared["FieldsRequest"]))}
	fields.Responses = responses(
		status(http.StatusOK, "Updated page state", stateRef),
		status(http.StatusBadRequest, "Malformed body", nil),
		status(http.StatusConflict, "A mirrored field was edited", nil),
	)
	doc.AddOperation(base+"/{id}/fields", http.MethodPatch, fields)

	for _, a := range []struct{ path, summary string }{
		{"next", "Validate the page and move forward"},
		{"back", "Move back one page"},
		{"save-exit", "Save and leave the wizard"},
		{"submit", "Validate every page and submit"},
	} {
		op := operation(def.Name+"."+a.path, a.summary, tag)
		op.AddParameter(idParameter())
		op.Responses = responses(
			status(http.StatusOK, "Action applied", actionRef),
			status(http.StatusUnprocessableEntity, "Validation failed; the cursor did not move", actionRef),
			status(http.StatusConflict, "Another action is running or the draft changed elsewhere", nil),
		)
		doc.AddOperation(base+"/{id}/"+a.path, http.MethodPost, op)
	}

	unmount := operation(def.Name+".unmount", "Close the open session", tag)
	unmount.AddParameter(idParameter())
	unmount.Responses = responses(
		status(http.StatusNoContent, "Session closed; pending autosave dropped", nil),
		status(http.StatusNotFound, "No open session", nil),
	)
	doc.AddOperation(base+"/{id}/session", http.MethodDelete, unmount)
}

func operation(id, summary, tag string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}
	return op
}

func idParameter() *openapi3.Parameter {
	return openapi3.NewPathParameter("id").WithSchema(openapi3.NewUUIDSchema())
}

type statusResponse struct {
	code     int
	response *openapi3.Response
}

func status(code int, description string, body *openapi3.SchemaRef) statusResponse {
	resp := openapi3.NewResponse().WithDescription(description)
	if body != nil {
		resp = resp.WithJSONSchemaRef(body)
	}
	return statusResponse{code: code, response: resp}
}

func responses(entries ...statusResponse) *openapi3.Responses {
	opts := make([]openapi3.NewResponsesOption, 0, len(entries))
	for _, e := range entries {
		opts = append(opts, openapi3.WithStatus(e.code, &openapi3.ResponseRef{Value: e.response}))
	}
	return openapi3.NewResponses(opts...)
}

func ref(name string, schema *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(schemaPrefix+name, schema)
}

// typeName turns "system-intake" into "SystemIntake".
func typeName(name string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	}) {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}
