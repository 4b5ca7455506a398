// Package aggregates defines the reconciler's write boundaries: classification of
// a session, reviewer status transitions, and applying one change to the listings store.
//
// Contracts carry no persistence or transport detail. Each write method is atomic.
package aggregates
