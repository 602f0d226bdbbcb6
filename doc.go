// Package innosupps is the background core of the Inno-Supps marketing
// operations backend. It runs workspace-scoped background jobs (email
// ingestion, reply drafting, meeting booking, call analysis, research and
// growth plans) with per-workspace deduplication, durable status tracking,
// token-bucket rate limiting and a statically described tool registry.
//
// # Quick Start
//
//	d, err := innosupps.New(
//	    innosupps.WithConfig(cfg),
//	    innosupps.WithStore(pgStore),
//	    innosupps.WithBroker(redisBroker),
//	)
//	eng, err := engine.Build(d)
//
// # Architecture
//
// Each subsystem (job, agentmem, crm) defines its own store interface and a
// single backend implements all of them. Delivery is owned by a queue
// broker (high, default and low queues); the relational Job table is the
// source of truth for status. The KV cache backs rate-limit buckets,
// cooldown flags and sessions.
//
// All generated entity IDs use TypeID: type-prefixed, K-sortable,
// UUIDv7-based identifiers.
package innosupps
