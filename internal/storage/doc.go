// Package storage persists the active timer set so schedules survive a
// daemon restart.
//
// Every save is a full snapshot: the caller hands over the complete set and
// the backend replaces whatever it held before. Two drivers exist:
//   - file: a pretty-printed JSON document {"timers": [...]}
//   - sqlite: a single table rewritten inside one transaction
package storage
