package stream

import (
	"fmt"
	"strings"
	"sync"
)

// Topic names:
//
//	workspace:<id>  job events of one workspace
//	job:<id>        events of one job
//	queue:<name>    job events of one queue
//	jobs            every job event
//	firehose        everything, sweeps included
const (
	TopicJobs     = "jobs"
	TopicFirehose = "firehose"
)

// WorkspaceTopic returns the topic of a workspace's job events.
func WorkspaceTopic(workspaceID string) string { return "workspace:" + workspaceID }

// JobTopic returns the topic of a single job.
func JobTopic(jobID string) string { return "job:" + jobID }

// QueueTopic returns the topic of a queue.
func QueueTopic(queue string) string { return "queue:" + queue }

// topics maps topic names to their subscribers. Safe for concurrent use.
type topics struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscriber
}

func newTopics() *topics {
	return &topics{subs: make(map[string]map[string]*Subscriber)}
}

func (t *topics) add(topic string, s *Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.subs[topic]
	if !ok {
		m = make(map[string]*Subscriber)
		t.subs[topic] = m
	}
	m[s.id] = s
}

func (t *topics) removeAll(subscriberID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, m := range t.subs {
		delete(m, subscriberID)
		if len(m) == 0 {
			delete(t.subs, topic)
		}
	}
}

// broadcast delivers evt once to every subscriber on any of the topics and
// returns how many accepted it.
func (t *topics) broadcast(names []string, evt *Event) (delivered, dropped int) {
	t.mu.RLock()
	seen := make(map[string]*Subscriber)
	for _, name := range names {
		for id, s := range t.subs[name] {
			seen[id] = s
		}
	}
	t.mu.RUnlock()

	for _, s := range seen {
		if s.send(evt) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

func (t *topics) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// routes lists the topics evt is published on.
func routes(evt *Event) []string {
	out := []string{TopicFirehose}
	if strings.HasPrefix(string(evt.Type), "job.") {
		out = append(out, TopicJobs)
	}
	if evt.WorkspaceID != "" {
		out = append(out, WorkspaceTopic(evt.WorkspaceID))
	}
	if evt.Queue != "" {
		out = append(out, QueueTopic(evt.Queue))
	}
	if evt.Topic != "" {
		out = append(out, evt.Topic)
	}
	return out
}

// ValidateTopic reports whether topic is a known global topic or a
// well-formed entity topic.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicJobs, TopicFirehose:
		return nil
	}
	kind, name, ok := strings.Cut(topic, ":")
	if !ok || name == "" {
		return fmt.Errorf("stream: invalid topic %q", topic)
	}
	switch kind {
	case "workspace", "job", "queue":
		return nil
	}
	return fmt.Errorf("stream: unknown topic kind %q", kind)
}
