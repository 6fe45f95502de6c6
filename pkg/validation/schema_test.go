package validation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/errsurface"
	"github.com/goliatone/go-intake/pkg/validation"
)

func contactRules() []validation.Rule {
	return []validation.Rule{
		{Path: "requester.name", Required: true, Message: "Enter the Requester's name"},
		{Path: "requester.component", Required: true, Message: "Select a Requester Component"},
		{Path: "businessOwner.name", RequiredUnless: "isBusinessOwnerSameAsRequester", Message: "Enter the Business Owner's name"},
		{Path: "businessOwner.email", Label: "Business Owner email", Format: validation.FormatEmail},
		{
			Path:         "governanceTeams.teams",
			Label:        "Governance teams",
			RequiredWhen: "governanceTeams.isPresent == true",
			MinItems:     1,
			Each: []validation.Rule{
				{Path: "name", Required: true, Message: "Select a team"},
				{Path: "collaborator", Required: true, Message: "Enter a collaborator name", MaxLength: 10},
			},
		},
	}
}

func entryMap(tree *errsurface.Tree) map[string][]string {
	out := make(map[string][]string)
	for _, entry := range tree.Flatten() {
		out[entry.Path] = append(out[entry.Path], entry.Message)
	}
	return out
}

func TestValidateRequiredFields(t *testing.T) {
	schema := validation.MustSchema(contactRules())

	values := map[string]any{
		"requester": map[string]any{"name": "", "component": "OIT"},
	}
	result, err := schema.Validate(context.Background(), values)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid() {
		t.Fatalf("expected invalid result")
	}

	want := map[string][]string{
		"requester.name":     {"Enter the Requester's name"},
		"businessOwner.name": {"Enter the Business Owner's name"},
	}
	if diff := cmp.Diff(want, entryMap(result.Errors)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRequiredUnlessFlagSet(t *testing.T) {
	schema := validation.MustSchema(contactRules())

	values := map[string]any{
		"requester":                      map[string]any{"name": "Jane", "component": "OIT"},
		"isBusinessOwnerSameAsRequester": true,
	}
	result, err := schema.Validate(context.Background(), values)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("expected valid result, got %#v", result.Errors.Flatten())
	}
}

func TestValidateEachRow(t *testing.T) {
	schema := validation.MustSchema(contactRules())

	values := map[string]any{
		"requester":                      map[string]any{"name": "Jane", "component": "OIT"},
		"isBusinessOwnerSameAsRequester": true,
		"governanceTeams": map[string]any{
			"isPresent": true,
			"teams": []any{
				map[string]any{"name": "TRB", "collaborator": "Ada"},
				map[string]any{"name": "", "collaborator": "A very long collaborator"},
			},
		},
	}
	result, err := schema.Validate(context.Background(), values)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := map[string][]string{
		"governanceTeams.teams.1.name":         {"Select a team"},
		"governanceTeams.teams.1.collaborator": {"Enter a collaborator name"},
	}
	if diff := cmp.Diff(want, entryMap(result.Errors)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRequiredWhenListEmpty(t *testing.T) {
	schema := validation.MustSchema(contactRules())

	values := map[string]any{
		"requester":                      map[string]any{"name": "Jane", "component": "OIT"},
		"isBusinessOwnerSameAsRequester": true,
		"governanceTeams":                map[string]any{"isPresent": true, "teams": []any{}},
	}
	result, err := schema.Validate(context.Background(), values)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := result.Errors.At("governanceTeams.teams"); len(got) != 1 {
		t.Fatalf("expected one list error, got %#v", result.Errors.Flatten())
	}
}

func TestValidateMinItemsOnEmptyList(t *testing.T) {
	schema := validation.MustSchema([]validation.Rule{
		{Path: "teams", MinItems: 1, Message: "Add at least one team"},
		{Path: "contacts", MinItems: 2},
		{Path: "reviewers", RequiredWhen: "needsReview", MinItems: 1, Message: "Add a reviewer"},
	})

	tests := []struct {
		name   string
		values map[string]any
		want   map[string][]string
	}{
		{
			name:   "empty list",
			values: map[string]any{"teams": []any{}},
			want:   map[string][]string{"teams": {"Add at least one team"}},
		},
		{
			name:   "missing list",
			values: map[string]any{},
			want:   map[string][]string{},
		},
		{
			name:   "short list",
			values: map[string]any{"teams": []any{"TRB"}, "contacts": []any{"Jane"}},
			want:   map[string][]string{"contacts": {"contacts needs at least 2 entries"}},
		},
		{
			name:   "condition off",
			values: map[string]any{"teams": []any{"TRB"}, "needsReview": false, "reviewers": []any{}},
			want:   map[string][]string{},
		},
		{
			name:   "condition on",
			values: map[string]any{"teams": []any{"TRB"}, "needsReview": true, "reviewers": []any{}},
			want:   map[string][]string{"reviewers": {"Add a reviewer"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := schema.Validate(context.Background(), tc.values)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if diff := cmp.Diff(tc.want, entryMap(result.Errors)); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateFormats(t *testing.T) {
	schema := validation.MustSchema([]validation.Rule{
		{Path: "email", Format: validation.FormatEmail},
		{Path: "date", Format: validation.FormatDate},
		{Path: "phone", Format: validation.FormatPhone},
		{Path: "id", Format: validation.FormatUUID},
		{Path: "amount", Format: validation.FormatNumber},
		{Path: "code", Pattern: `^[A-Z]{3}$`},
		{Path: "stage", OneOf: []string{"Just an idea", "Developing"}},
		{Path: "summary", MinLength: 5},
	})

	bad := map[string]any{
		"email":   "not-an-email",
		"date":    "yesterday",
		"phone":   "call me",
		"id":      "123",
		"amount":  "lots",
		"code":    "abc",
		"stage":   "Finished",
		"summary": "tiny",
	}
	result, err := schema.Validate(context.Background(), bad)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := result.Errors.Len(); got != len(bad) {
		t.Fatalf("expected %d errors, got %d: %#v", len(bad), got, result.Errors.Flatten())
	}

	good := map[string]any{
		"email":   "jane.doe@example.gov",
		"date":    "03/15/2025",
		"phone":   "(410) 555-0100",
		"id":      "6b0a1c62-3e4f-4a38-9bde-1f1f8d6c1e0a",
		"amount":  "1,500.50",
		"code":    "ABC",
		"stage":   "Developing",
		"summary": "long enough",
	}
	result, err = schema.Validate(context.Background(), good)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("expected valid result, got %#v", result.Errors.Flatten())
	}
}

func TestValidateWhenSkipsRule(t *testing.T) {
	schema := validation.MustSchema([]validation.Rule{
		{Path: "contract.vehicle", Required: true, When: `contract.hasContract == "HAVE_CONTRACT"`},
	})

	result, err := schema.Validate(context.Background(), map[string]any{
		"contract": map[string]any{"hasContract": "NOT_NEEDED"},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("expected rule to be skipped")
	}
}

func TestValidateDoesNotMutateValues(t *testing.T) {
	schema := validation.MustSchema(contactRules())
	rec := draft.NewRecord("system-intake", map[string]any{
		"requester":       map[string]any{"name": " ", "component": "OIT"},
		"governanceTeams": map[string]any{"isPresent": true, "teams": []any{map[string]any{}}},
	})
	before := rec.Fingerprint()

	if _, err := schema.Validate(context.Background(), rec.Values); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if after := rec.Fingerprint(); after != before {
		t.Fatalf("validation mutated values")
	}
}

func TestValidateRemoteChecks(t *testing.T) {
	remote := func(_ context.Context, values map[string]any) (map[string]string, error) {
		return map[string]string{"contract.number": "Contract number not found"}, nil
	}
	schema := validation.MustSchema(nil, validation.WithRemoteChecks(remote))

	result, err := schema.Validate(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if diff := cmp.Diff([]string{"Contract number not found"}, result.Errors.At("contract.number")); diff != "" {
		t.Fatalf("remote errors mismatch (-want +got):\n%s", diff)
	}

	boom := errors.New("service unavailable")
	failing := validation.MustSchema(nil, validation.WithRemoteChecks(func(context.Context, map[string]any) (map[string]string, error) {
		return nil, boom
	}))
	if _, err := failing.Validate(context.Background(), map[string]any{}); !errors.Is(err, boom) {
		t.Fatalf("expected remote failure to surface, got %v", err)
	}
}

func TestValidateCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := validation.MustSchema(contactRules()).Validate(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSchemaRejectsBadRules(t *testing.T) {
	cases := [][]validation.Rule{
		{{Path: ""}},
		{{Path: "a", Pattern: "("}},
		{{Path: "a", RequiredUnless: "flag = true"}},
		{{Path: "a", Format: "zip"}},
		{{Path: "rows", Each: []validation.Rule{{Path: "x", When: "(broken"}}}},
	}
	for i, rules := range cases {
		if _, err := validation.NewSchema(rules); err == nil {
			t.Fatalf("case %d: expected compile error", i)
		}
	}
}

func TestSchemaPaths(t *testing.T) {
	want := []string{
		"requester.name",
		"requester.component",
		"businessOwner.name",
		"businessOwner.email",
		"governanceTeams.teams",
		"governanceTeams.teams.*.name",
		"governanceTeams.teams.*.collaborator",
	}
	if diff := cmp.Diff(want, validation.MustSchema(contactRules()).Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}
