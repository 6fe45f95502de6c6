// Package draft holds the in-progress record a wizard edits and the stores
// that persist it. Values are addressed by dotted paths (`requester.name`,
// `governanceTeams.teams.0.collaborator`) and saved with optimistic revision
// checks, so a background autosave and an explicit save of the same record
// cannot silently overwrite each other.
package draft
