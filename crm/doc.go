// Package crm defines the sales entities the background jobs read and
// write: email threads and messages, prospects, meetings, analyzed calls,
// research briefs and growth plans, plus workspace memberships used for
// authorization.
//
// Every entity is workspace scoped. Messages inherit their workspace from
// the owning thread.
package crm
