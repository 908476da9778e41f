package learning

import (
	"sort"
	"sync"

	"github.com/supportmind/memory-core/internal/models"
)

// LatencyWindowSize bounds the rolling latency sample window.
const LatencyWindowSize = 100

// Aggregator keeps in-memory rolling metrics over recorded interactions.
// It is reset on process start and injected explicitly into the engine;
// the durable learning records remain the source of truth across
// restarts.
type Aggregator struct {
	mu              sync.Mutex
	count           int64
	confidenceSum   float64
	topicCounts     map[string]int64
	latencySamples  []int64
	latencyNextSlot int
}

// NewAggregator creates an empty metrics aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		topicCounts: make(map[string]int64),
	}
}

// Observe folds one interaction into the rolling metrics.
func (a *Aggregator) Observe(record *models.LearningRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	a.confidenceSum += record.Confidence
	if record.Category != "" {
		a.topicCounts[string(record.Category)]++
	}

	if len(a.latencySamples) < LatencyWindowSize {
		a.latencySamples = append(a.latencySamples, record.LatencyMS)
	} else {
		// Ring buffer: overwrite the oldest sample.
		a.latencySamples[a.latencyNextSlot] = record.LatencyMS
		a.latencyNextSlot = (a.latencyNextSlot + 1) % LatencyWindowSize
	}
}

// Reset clears all rolling metrics.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.confidenceSum = 0
	a.topicCounts = make(map[string]int64)
	a.latencySamples = nil
	a.latencyNextSlot = 0
}

// TopicCount is one entry of the topic frequency ranking.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int64  `json:"count"`
}

// Stats is a point-in-time view of the rolling metrics.
type Stats struct {
	Interactions  int64        `json:"interactions"`
	AvgConfidence float64      `json:"avg_confidence"`
	TopTopics     []TopicCount `json:"top_topics"`
	AvgLatencyMS  int64        `json:"avg_latency_ms"`
	LatencySample int          `json:"latency_sample_size"`
}

// Snapshot returns a copy of the current metrics. topN bounds the topic
// ranking.
func (a *Aggregator) Snapshot(topN int) Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		Interactions:  a.count,
		LatencySample: len(a.latencySamples),
	}
	if a.count > 0 {
		stats.AvgConfidence = a.confidenceSum / float64(a.count)
	}

	if len(a.latencySamples) > 0 {
		var sum int64
		for _, sample := range a.latencySamples {
			sum += sample
		}
		stats.AvgLatencyMS = sum / int64(len(a.latencySamples))
	}

	topics := make([]TopicCount, 0, len(a.topicCounts))
	for topic, count := range a.topicCounts {
		topics = append(topics, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Topic < topics[j].Topic
	})
	if topN > 0 && len(topics) > topN {
		topics = topics[:topN]
	}
	stats.TopTopics = topics

	return stats
}
