package redis

// Redis key layout. Every key carries the broker prefix (default
// "innosupps:") so several deployments can share one Redis.

// envelopeKey holds the encoded envelope: {p}envelope:{id}
func (b *Broker) envelopeKey(jobID string) string { return b.prefix + "envelope:" + jobID }

// queueKey is the List of waiting job IDs: {p}queue:{name}
func (b *Broker) queueKey(name string) string { return b.prefix + "queue:" + name }

// scheduledKey is the Sorted Set of delayed job IDs scored by due time in
// unix milliseconds: {p}scheduled:{name}
func (b *Broker) scheduledKey(name string) string { return b.prefix + "scheduled:" + name }

// startedKey is the Set of claimed job IDs: {p}started:{name}
func (b *Broker) startedKey(name string) string { return b.prefix + "started:" + name }

// finishedKey is the Sorted Set of finished job IDs scored by completion
// time: {p}finished:{name}
func (b *Broker) finishedKey(name string) string { return b.prefix + "finished:" + name }

// failedKey is the Sorted Set of failed job IDs scored by failure time:
// {p}failed:{name}
func (b *Broker) failedKey(name string) string { return b.prefix + "failed:" + name }

// queuesKey is the Set of every queue name ever submitted to.
func (b *Broker) queuesKey() string { return b.prefix + "queues" }
