// Package aggregates implements the reconciler's write boundaries on top of the
// table repos in internal/data/repos. Every write runs in one transaction through
// TxRunner, status changes go through CASGuard, and failures leave as *aggregates.Error.
package aggregates
