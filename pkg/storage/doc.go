// Package storage persists the job queue in BoltDB. The Store interface is
// what the rest of the service programs against; BoltStore is the only
// implementation. ClaimNext is the queue primitive: it atomically moves the
// oldest queued job to running, so any number of workers can poll it safely.
package storage
