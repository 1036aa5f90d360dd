// Package api exposes the HTTP surface of a node: job submission and
// lifecycle endpoints, cluster-aware routing of job reads to their owner
// node, aggregated cluster views and the metrics endpoints.
//
// Submission is the only write that fans out: with round-robin enabled the
// handler walks scheduler targets and forwards the upload, falling back to
// local creation when every peer refuses. Reads on /jobs/{id}... are proxied
// to the owner encoded in the job id prefix. The internal=1 query flag marks
// node-to-node requests and disables both behaviors to keep hops bounded.
package api
