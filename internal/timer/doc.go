// Package timer defines the scheduled unit (Timer), its creation request and
// validation rules, and the recurrence calculator.
//
// Everything here is pure: no goroutines, no I/O, no wall clock. Callers pass
// "now" explicitly so the scheduler and its tests control time.
package timer
