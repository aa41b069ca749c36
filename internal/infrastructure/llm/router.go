package llm

import (
	"log"

	"github.com/docsage/docsage-api/internal/domain/repository"
)

// Router implements repository.LLMRouter: latency-sensitive, low-cognition
// tasks go to the local backend, answer synthesis goes to the cloud backend.
// Either side may be nil when only one backend is configured; the other then
// serves every task.
type Router struct {
	localClient repository.CompletionClient
	cloudClient repository.CompletionClient
}

// NewRouter initializes the LLM router with the specified backend clients.
func NewRouter(local, cloud repository.CompletionClient) *Router {
	return &Router{
		localClient: local,
		cloudClient: cloud,
	}
}

// RouteTask evaluates the cognitive load required and routes to the optimal backend.
func (r *Router) RouteTask(task repository.TaskType) repository.CompletionClient {
	var selected repository.CompletionClient
	var icon string

	switch task {
	case repository.TaskClassification, repository.TaskExtraction:
		selected = r.localClient
		icon = "🏠"
	case repository.TaskSynthesis:
		selected = r.cloudClient
		icon = "☁️"
	default:
		selected = r.localClient
		icon = "🏠"
	}

	if selected == nil {
		if selected = r.localClient; selected == nil {
			selected = r.cloudClient
		}
	}
	if selected == nil {
		log.Printf("[Router] ⚠️  No backend available for task '%s'", task)
		return nil
	}

	log.Printf("[Router] 🛤️  Routing task '%s' to %s %s", task, icon, selected.Name())
	return selected
}
