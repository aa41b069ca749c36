package repository

import "context"

// CompletionClient generates text from a prompt.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// TaskType defines the cognitive category of an LLM workload.
type TaskType string

const (
	TaskClassification TaskType = "query_classification"
	TaskExtraction     TaskType = "entity_extraction"
	TaskSynthesis      TaskType = "answer_synthesis"
)

// LLMRouter routes a task to the appropriate completion client.
type LLMRouter interface {
	RouteTask(task TaskType) CompletionClient
}
