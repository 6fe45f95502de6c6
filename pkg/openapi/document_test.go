package openapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-intake/pkg/intake"
	"github.com/goliatone/go-intake/pkg/openapi"
	"github.com/goliatone/go-intake/pkg/validation"
	"github.com/goliatone/go-intake/pkg/wizard"
)

func bundled(t *testing.T) []wizard.Definition {
	t.Helper()
	store, err := intake.Definitions()
	if err != nil {
		t.Fatalf("Definitions: %v", err)
	}
	defs, err := intake.CompileAll(store)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	return defs
}

func build(t *testing.T, defs []wizard.Definition) *openapi3.T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	doc, err := openapi.Build(ctx, defs, openapi.Info{Title: "Intake", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return doc
}

func property(t *testing.T, s *openapi3.Schema, names ...string) *openapi3.Schema {
	t.Helper()
	for _, name := range names {
		ref, ok := s.Properties[name]
		if !ok || ref.Value == nil {
			t.Fatalf("missing property %q", name)
		}
		s = ref.Value
	}
	return s
}

func TestBuildDescribesBundledRoutes(t *testing.T) {
	doc := build(t, bundled(t))

	for _, tc := range []struct {
		path   string
		method string
		id     string
	}{
		{"/system", http.MethodPost, "system-intake.create"},
		{"/system/{id}/{page}", http.MethodGet, "system-intake.page"},
		{"/system/{id}/fields", http.MethodPatch, "system-intake.fields"},
		{"/system/{id}/next", http.MethodPost, "system-intake.next"},
		{"/system/{id}/back", http.MethodPost, "system-intake.back"},
		{"/system/{id}/save-exit", http.MethodPost, "system-intake.save-exit"},
		{"/system/{id}/submit", http.MethodPost, "system-intake.submit"},
		{"/system/{id}/session", http.MethodDelete, "system-intake.unmount"},
		{"/business/{id}/submit", http.MethodPost, "business-case.submit"},
	} {
		item := doc.Paths.Find(tc.path)
		if item == nil {
			t.Fatalf("missing path %s", tc.path)
		}
		op := item.GetOperation(tc.method)
		if op == nil {
			t.Fatalf("missing %s %s", tc.method, tc.path)
		}
		if op.OperationID != tc.id {
			t.Fatalf("%s %s operation id = %q, want %q", tc.method, tc.path, op.OperationID, tc.id)
		}
	}

	next := doc.Paths.Find("/system/{id}/next").Post
	if next.Responses.Status(http.StatusUnprocessableEntity) == nil {
		t.Fatalf("next should document the validation failure response")
	}
	if next.Responses.Default() != nil {
		t.Fatalf("no default response expected")
	}
}

func TestValuesSchemaCarriesRules(t *testing.T) {
	doc := build(t, bundled(t))

	ref, ok := doc.Components.Schemas["SystemIntakeValues"]
	if !ok {
		t.Fatalf("missing SystemIntakeValues")
	}
	values := ref.Value

	if got := property(t, values, "fundingSource", "fundingNumber").Pattern; got != "^[0-9]{6}$" {
		t.Fatalf("funding number pattern = %q", got)
	}
	if got := property(t, values, "requestName").MaxLength; got == nil || *got != 200 {
		t.Fatalf("request name max length = %v", got)
	}
	if got := property(t, values, "contract", "startDate").Format; got != "date" {
		t.Fatalf("start date format = %q", got)
	}
	if !property(t, values, "isBusinessOwnerSameAsRequester").Type.Is(openapi3.TypeBoolean) {
		t.Fatalf("checkbox should be a boolean")
	}

	enum := property(t, values, "contract", "hasContract").Enum
	want := []any{"HAVE_CONTRACT", "IN_PROGRESS", "NOT_STARTED", "NOT_NEEDED"}
	if diff := cmp.Diff(want, enum); diff != "" {
		t.Fatalf("contract enum mismatch (-want +got):\n%s", diff)
	}

	teams := property(t, values, "governanceTeams", "teams")
	if !teams.Type.Is(openapi3.TypeArray) || teams.Items == nil {
		t.Fatalf("teams should be an array")
	}
	if _, ok := teams.Items.Value.Properties["collaborator"]; !ok {
		t.Fatalf("team rows should describe collaborator")
	}

	state := doc.Components.Schemas["SystemIntakeState"].Value
	if got := state.Properties["values"].Ref; got != "#/components/schemas/SystemIntakeValues" {
		t.Fatalf("state values ref = %q", got)
	}
}

func TestValuesSchemaNestsFieldsAndItemRules(t *testing.T) {
	schema, err := validation.NewSchema([]validation.Rule{
		{Path: "owner.email", Format: validation.FormatEmail},
		{Path: "rows", MinItems: 1, Each: []validation.Rule{{Path: "label", MinLength: 2}}},
		{Path: "unknown.path", Required: true},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	def := wizard.Definition{
		Name: "demo",
		Pages: []wizard.Page{{
			Slug: "one",
			View: wizard.FormView{Fields: []wizard.Field{
				{Path: "owner.email", Label: "Email", Type: wizard.FieldText},
				{Path: "rows", Type: wizard.FieldList, Items: []wizard.Field{{Path: "label", Type: wizard.FieldText}}},
			}},
			Schema: schema,
		}},
	}

	values := openapi.ValuesSchema(def)
	email := property(t, values, "owner", "email")
	if email.Format != "email" || email.Title != "Email" {
		t.Fatalf("email = %+v", email)
	}
	rows := property(t, values, "rows")
	if rows.MinItems != 1 {
		t.Fatalf("rows min items = %d", rows.MinItems)
	}
	if got := rows.Items.Value.Properties["label"].Value.MinLength; got != 2 {
		t.Fatalf("row label min length = %d", got)
	}
	if _, ok := values.Properties["unknown"]; ok {
		t.Fatalf("rules without fields should not add properties")
	}
}

func TestBuildRejectsInvalidDefinition(t *testing.T) {
	_, err := openapi.Build(context.Background(), []wizard.Definition{{Name: "empty"}}, openapi.Info{})
	if err == nil {
		t.Fatalf("expected error for a definition without pages")
	}
}

func TestHandlerServesDocument(t *testing.T) {
	doc := build(t, bundled(t))
	handler, err := openapi.Handler(doc)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}

	var body struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OpenAPI != "3.0.3" || body.Info.Title != "Intake" {
		t.Fatalf("unexpected document header: %+v", body)
	}

	loaded, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := loaded.Validate(context.Background()); err != nil {
		t.Fatalf("served document does not validate: %v", err)
	}
}
