package wizard

import (
	"time"

	"github.com/goliatone/go-intake/pkg/validation"
)

// Kind tags a page as an editable form step or the final review step.
type Kind string

const (
	KindForm   Kind = "FORM"
	KindReview Kind = "REVIEW"
)

// View is what a page renders. It is a closed set: FormView or ReviewView.
type View interface {
	Kind() Kind
	isView()
}

// FieldType hints how a field is captured.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextArea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldDate     FieldType = "date"
	FieldList     FieldType = "list"
)

// Field describes one input on a form page. List fields repeat Items for
// every row of the list stored at Path.
type Field struct {
	Path    string    `json:"path" yaml:"path"`
	Label   string    `json:"label" yaml:"label"`
	Type    FieldType `json:"type" yaml:"type"`
	Help    string    `json:"help,omitempty" yaml:"help,omitempty"`
	Options []string  `json:"options,omitempty" yaml:"options,omitempty"`
	When    string    `json:"when,omitempty" yaml:"when,omitempty"`
	Items   []Field   `json:"items,omitempty" yaml:"items,omitempty"`
}

// FormView lists the fields of a form page in display order.
type FormView struct {
	Fields []Field
}

func (FormView) Kind() Kind { return KindForm }
func (FormView) isView()    {}

// ReviewView renders a read-only summary of the whole draft.
type ReviewView struct {
	Template string
}

func (ReviewView) Kind() Kind { return KindReview }
func (ReviewView) isView()    {}

// Page is one immutable step of a wizard.
type Page struct {
	Slug          string
	Title         string
	View          View
	Schema        *validation.Schema
	AutosaveDelay time.Duration
}

// Kind returns the page kind; pages without a view are forms.
func (p Page) Kind() Kind {
	if p.View == nil {
		return KindForm
	}
	return p.View.Kind()
}

// Fields returns the form fields of the page, or nil for review pages.
func (p Page) Fields() []Field {
	if form, ok := p.View.(FormView); ok {
		return form.Fields
	}
	return nil
}
