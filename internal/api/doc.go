// Package api exposes the operator HTTP surface: manual assignment and
// reconciliation runs, scheduler status, per-subscriber assignment and tier
// statistics. Handlers translate HTTP concerns to scheduler and assignment
// service calls and map their errors to status codes.
package api
