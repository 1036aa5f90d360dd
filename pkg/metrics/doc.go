// Package metrics owns the process-wide Prometheus registry for the
// language-identification service.
//
// All collectors are package-level and registered in init, matching the
// text exposition served on /metrics. The distinguishing collector is
// langid_gate_path_decisions_total, a counter labeled by gate_path,
// gate_decision, pipeline_mode, language and music_only; ClassifyGatePath
// and ClassifyPipelineMode define the stable mapping from gate decisions to
// those labels.
//
// Workers do not increment collectors directly. They publish Events onto a
// bounded Queue whose single consumer performs the increments, so the
// registry is only ever touched from the serving process and a full queue
// can never stall a pipeline.
//
// A JSON-friendly LocalState mirrors the cluster-relevant counters for the
// /cluster/local-metrics endpoint; peers merge these snapshots because
// Prometheus registries cannot be merged across nodes.
package metrics
