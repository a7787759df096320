// Package assignment hands out daily task batches to paid subscribers and
// reconciles tasks they have completed.
//
// A pass selects subscribers due for a batch, picks the lowest-level
// templates they have never received, and materializes them as tasks on
// the subscriber's profession board. Every (subscriber, template) pair is
// assigned at most once, and at most one batch is handed out per subscriber
// per calendar day even when passes run concurrently.
package assignment
