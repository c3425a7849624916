// Package pattern defines the data model for the diagnosis engine.
//
// A Pattern is a named record describing a recognizable development error
// (via ordered regex signatures) and a candidate remedy (an opaque solution
// template consumed by an external executor). An Application is one
// historical record of a pattern's solution being tried, with its outcome.
//
// Patterns carry derived statistics (success rate, usage count) that are
// recomputed from the append-only Application log, never maintained as
// independent running counters. The Application log is the audit trail;
// the statistics are a view over it.
package pattern
