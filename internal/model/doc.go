// Package model defines the data structures shared by the crawler, the run
// journal and the report writers.
//
// This package contains the following main types:
//   - Resource: the outcome of processing one URL during a mirror run
//   - MirrorReport: the summary of one mirror run
//
// Design decision: We keep these types out of the crawler package so the
// database and report packages can use them without importing the engine.
//
// The types are designed to be serializable to JSON for report output and
// journal storage.
package model
