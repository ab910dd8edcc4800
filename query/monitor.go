package query

import "github.com/poiesic/ragd/core"

// Monitor provides hooks to observe the query pipeline.
// Implement this interface to track intermediate stages of a query.
type Monitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterRetrieval(matches core.RetrievalResult)
	AfterGeneration(answer string)
	Finish(response *core.AnswerResponse)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                        {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)       {}
func (n *noopMonitor) AfterRetrieval(_ core.RetrievalResult) {}
func (n *noopMonitor) AfterGeneration(_ string)              {}
func (n *noopMonitor) Finish(_ *core.AnswerResponse)         {}
