// Package openapi describes the HTTP surface of a set of wizards as an
// OpenAPI 3 document. Each wizard contributes its routes and a schema of its
// draft values derived from the page fields and validation rules.
package openapi
