package cluster

import "fmt"

// pipelineKVPrefix namespaces per-pipeline statistics within a node's
// gossiped KV map.
const pipelineKVPrefix = "pipeline/"

// MetricsPublisher writes per-pipeline statistics into the local node's
// gossiped KV map, so peers observing this node via ChangeStream can read
// its current pipeline stats without a direct RPC. It tombstones
// (removes) keys for pipelines that have disappeared since the previous
// publish.
type MetricsPublisher struct {
	registry *Registry
	known    map[string]struct{}
}

// NewMetricsPublisher returns a publisher writing through registry.
func NewMetricsPublisher(registry *Registry) *MetricsPublisher {
	return &MetricsPublisher{
		registry: registry,
		known:    make(map[string]struct{}),
	}
}

// pipelineKey builds the gossiped KV key for one (pipelineID, field) pair.
func pipelineKey(pipelineID, field string) string {
	return fmt.Sprintf("%s%s/%s", pipelineKVPrefix, pipelineID, field)
}

// Publish writes stats (field -> formatted value) for pipelineID, and
// tombstones any key previously published for a pipeline no longer present
// in live.
func (m *MetricsPublisher) Publish(
	pipelineID string, stats map[string]string, live map[string]struct{},
) {

	kv := make(map[string]string, len(stats))
	for field, v := range stats {
		kv[pipelineKey(pipelineID, field)] = v
	}
	m.known[pipelineID] = struct{}{}

	for id := range m.known {
		if _, ok := live[id]; !ok {
			m.tombstone(id)
			delete(m.known, id)
		}
	}

	m.registry.PublishKV(kv)
}

// tombstone removes every previously-published field for pipelineID by
// publishing empty values, which Registry.PublishKV treats as deletions.
func (m *MetricsPublisher) tombstone(pipelineID string) {
	tomb := map[string]string{
		pipelineKey(pipelineID, "total_docs"):               "",
		pipelineKey(pipelineID, "total_events"):              "",
		pipelineKey(pipelineID, "total_events_processed"):    "",
		pipelineKey(pipelineID, "total_events_received"):     "",
		pipelineKey(pipelineID, "total_events_sent"):         "",
		pipelineKey(pipelineID, "total_batches"):             "",
		pipelineKey(pipelineID, "total_sentences"):           "",
		pipelineKey(pipelineID, "total_subjects"):            "",
		pipelineKey(pipelineID, "total_predicates"):          "",
		pipelineKey(pipelineID, "total_objects"):             "",
		pipelineKey(pipelineID, "total_graph_events"):        "",
		pipelineKey(pipelineID, "total_vector_events"):       "",
		pipelineKey(pipelineID, "total_data_processed_size"): "",
	}
	m.registry.PublishKV(tomb)
}
