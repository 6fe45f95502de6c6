// Package definition loads wizard definitions from JSON or YAML documents and
// compiles them into wizard.Definition values. A document names the wizard,
// its route base, the mirror bindings between fields, and the ordered pages
// with their fields and validation rules.
package definition
