// Package store opens the draft.Store selected by configuration.
package store
