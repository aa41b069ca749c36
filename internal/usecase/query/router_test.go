package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
)

type mockCompletion struct {
	resp string
	err  error
}

func (m *mockCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	return m.resp, m.err
}
func (m *mockCompletion) Name() string { return "mock" }

type mockLLMRouter struct {
	client repository.CompletionClient
}

func (m *mockLLMRouter) RouteTask(task repository.TaskType) repository.CompletionClient {
	return m.client
}

func TestClassify_ParsesStructuredResponse(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{
			name: "bare JSON",
			resp: `{"category":"RELATIONAL","key_entities":["GPT","BERT"],"strategy":"HYBRID","reasoning":"connections between models"}`,
		},
		{
			name: "json fence",
			resp: "```json\n{\"category\":\"RELATIONAL\",\"key_entities\":[\"GPT\",\"BERT\"],\"strategy\":\"HYBRID\",\"reasoning\":\"connections between models\"}\n```",
		},
		{
			name: "plain fence with preamble",
			resp: "Here is the analysis:\n```\n{\"category\":\"RELATIONAL\",\"key_entities\":[\"GPT\",\"BERT\"],\"strategy\":\"HYBRID\",\"reasoning\":\"connections between models\"}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&mockLLMRouter{client: &mockCompletion{resp: tt.resp}})

			analysis := router.Classify(context.Background(), "What links GPT to BERT?")

			if analysis.Category != model.CategoryRelational {
				t.Errorf("expected RELATIONAL, got %s", analysis.Category)
			}
			if analysis.Strategy != model.StrategyHybrid {
				t.Errorf("expected HYBRID, got %s", analysis.Strategy)
			}
			if !reflect.DeepEqual(analysis.KeyEntities, []string{"GPT", "BERT"}) {
				t.Errorf("unexpected entities: %v", analysis.KeyEntities)
			}
		})
	}
}

func TestClassify_FailOpenFallback(t *testing.T) {
	tests := []struct {
		name   string
		client repository.CompletionClient
	}{
		{name: "completion error", client: &mockCompletion{err: errors.New("quota exceeded")}},
		{name: "malformed JSON", client: &mockCompletion{resp: "not json at all"}},
		{name: "missing category", client: &mockCompletion{resp: `{"strategy":"HYBRID"}`}},
		{name: "unknown strategy", client: &mockCompletion{resp: `{"category":"FACTUAL","strategy":"TELEPATHY"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(&mockLLMRouter{client: tt.client})

			analysis := router.Classify(context.Background(), "anything")

			if analysis.Category != model.CategoryExploratory {
				t.Errorf("fallback category: expected EXPLORATORY, got %s", analysis.Category)
			}
			if analysis.Strategy != model.StrategyHybrid {
				t.Errorf("fallback strategy: expected HYBRID, got %s", analysis.Strategy)
			}
			if len(analysis.KeyEntities) != 0 {
				t.Errorf("fallback entities must be empty, got %v", analysis.KeyEntities)
			}
			if analysis.Reasoning == "" {
				t.Error("fallback reasoning must be non-empty")
			}
		})
	}
}

func TestClassify_NilRouterFallsBack(t *testing.T) {
	router := NewRouter(nil)

	analysis := router.Classify(context.Background(), "anything")
	if analysis.Category != model.CategoryExploratory || analysis.Strategy != model.StrategyHybrid {
		t.Errorf("expected fallback analysis, got %+v", analysis)
	}
}

func TestPolicyFor_Table(t *testing.T) {
	tests := []struct {
		category model.QueryCategory
		strategy model.Strategy
		count    int
		depth    int
	}{
		{model.CategoryFactual, model.StrategyVectorOnly, 3, 2},
		{model.CategoryComparative, model.StrategyHybrid, 8, 2},
		{model.CategoryRelational, model.StrategyHybrid, 5, 3},
		{model.CategoryExploratory, model.StrategyHybrid, 10, 2},
		{model.CategoryTrendAnalysis, model.StrategyHybrid, 15, 3},
		{model.QueryCategory("SOMETHING_NEW"), model.StrategyHybrid, 5, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			policy := PolicyFor(model.QueryAnalysis{Category: tt.category})

			if policy.Strategy != tt.strategy || policy.ResultCount != tt.count || policy.GraphDepth != tt.depth {
				t.Errorf("policy for %s: got %+v", tt.category, policy)
			}
		})
	}
}

func TestPolicyFor_Pure(t *testing.T) {
	analysis := model.QueryAnalysis{Category: model.CategoryRelational, KeyEntities: []string{"A"}}

	first := PolicyFor(analysis)
	second := PolicyFor(analysis)
	if first != second {
		t.Errorf("PolicyFor is not pure: %+v vs %+v", first, second)
	}
}

func TestPolicy_StrategyOverride(t *testing.T) {
	policy := PolicyFor(model.QueryAnalysis{Category: model.CategoryExploratory})

	overridden := policy.WithStrategy(model.StrategyGraphOnly)
	if overridden.Strategy != model.StrategyGraphOnly {
		t.Errorf("override ignored: %+v", overridden)
	}
	if overridden.ResultCount != policy.ResultCount || overridden.GraphDepth != policy.GraphDepth {
		t.Errorf("override must not touch count/depth: %+v", overridden)
	}
	if policy.Strategy != model.StrategyHybrid {
		t.Error("WithStrategy must not mutate the original policy")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"surrounding prose", "Sure!\n```json\n{\"a\":1}\n```\nHope that helps.", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
