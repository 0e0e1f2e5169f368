// Package pipeline runs mirror jobs.
//
// A Job is one seed URL and its output directory. A Pipeline executes the
// steps of a job in order (prepare the output root, then mirror), and a
// BatchMirror runs one pipeline per seed with bounded concurrency.
//
// Design decision: We use a pipeline of steps instead of a single function
// because:
// 1. Seed validation and output root creation fail fast before any request
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context between steps
package pipeline
