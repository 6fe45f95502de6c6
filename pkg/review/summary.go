package review

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-intake/pkg/condition"
	"github.com/goliatone/go-intake/pkg/condition/expr"
	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/wizard"
)

// Summary is the template context of a review page.
type Summary struct {
	Title    string    `json:"title"`
	RecordID string    `json:"recordId"`
	Status   string    `json:"status"`
	Sections []Section `json:"sections"`
}

// Section summarizes one form page. EditPath routes back to the page.
type Section struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	EditPath string `json:"editPath"`
	Rows     []Row  `json:"rows"`
}

// Row is one answered (or unanswered) field. List fields carry one Items
// entry per list element.
type Row struct {
	Path  string  `json:"path"`
	Label string  `json:"label"`
	Value string  `json:"value"`
	Items [][]Row `json:"items,omitempty"`
}

// Build summarizes every form page of def over rec. Fields whose When rule
// does not hold are left out.
func Build(def wizard.Definition, rec draft.Record, evaluator condition.Evaluator) Summary {
	if evaluator == nil {
		evaluator = expr.New()
	}
	summary := Summary{
		Title:    def.Name,
		RecordID: rec.ID.String(),
		Status:   string(rec.Status),
	}
	for i, page := range def.Pages {
		if page.Kind() != wizard.KindForm {
			if page.Title != "" {
				summary.Title = page.Title
			}
			continue
		}
		summary.Sections = append(summary.Sections, Section{
			Slug:     page.Slug,
			Title:    page.Title,
			EditPath: def.PagePath(rec, i),
			Rows:     rows(page.Fields(), rec.Values, "", condition.Context{Values: rec.Values}, evaluator),
		})
	}
	return summary
}

func rows(fields []wizard.Field, scope map[string]any, prefix string, ctx condition.Context, evaluator condition.Evaluator) []Row {
	out := make([]Row, 0, len(fields))
	for _, field := range fields {
		if field.When != "" {
			ok, err := evaluator.Eval(field.When, ctx)
			if err != nil || !ok {
				continue
			}
		}
		path := field.Path
		if prefix != "" {
			path = prefix + "." + field.Path
		}
		value, _ := expr.Lookup(scope, field.Path)
		row := Row{Path: path, Label: field.Label}

		if field.Type == wizard.FieldList {
			list, _ := value.([]any)
			for idx, item := range list {
				itemScope, _ := item.(map[string]any)
				itemCtx := condition.Context{Values: itemScope, Extras: map[string]any{"root": ctx.Values}}
				row.Items = append(row.Items, rows(field.Items, itemScope, path+"."+strconv.Itoa(idx), itemCtx, evaluator))
			}
			if len(list) > 0 {
				row.Value = strconv.Itoa(len(list))
			}
			out = append(out, row)
			continue
		}

		row.Value = Display(value)
		out = append(out, row)
	}
	return out
}

// Display formats a draft value for a reviewer.
func Display(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case bool:
		if typed {
			return "Yes"
		}
		return "No"
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true":
			return "Yes"
		case "false":
			return "No"
		}
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			if text := Display(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(typed, ", ")
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+": "+Display(typed[key]))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(typed)
	}
}
