// Package worker drains the job queue. The pool claims jobs atomically from
// storage and the pipeline takes each one through decode, the language gate,
// snippet transcription and optional translation, persisting the result and
// applying the retry policy on failure.
package worker
