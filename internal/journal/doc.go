// Package journal persists the worker's local record of claimed jobs and the
// lifecycle reports it sent for them.
//
// The journal is an SQLite database in the state directory. It is the only
// durable state a worker keeps: the account service remains the source of
// truth for workspace status, the journal exists so operators can see what a
// worker attempted. The schema version lives in SQLite's user_version
// header; a journal with any other version is refused rather than migrated.
package journal
