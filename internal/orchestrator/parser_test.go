package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLargestBalancedJSON_IgnoresChatter(t *testing.T) {
	raw := "Sure, here's the plan:\n```json\n" +
		`{"tasks":[{"title":"a"}]}` +
		"\n```\nLet me know if you have questions."
	block, ok := ExtractLargestBalancedJSON(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"tasks":[{"title":"a"}]}`, block)
}

func TestExtractLargestBalancedJSON_PicksLargestAmongMultiple(t *testing.T) {
	raw := `small {"a":1} then big {"tasks":[{"title":"x"},{"title":"y"}]}`
	block, ok := ExtractLargestBalancedJSON(raw)
	require.True(t, ok)
	assert.Contains(t, block, "tasks")
}

func TestExtractLargestBalancedJSON_NoJSONReturnsFalse(t *testing.T) {
	_, ok := ExtractLargestBalancedJSON("no structured output here at all")
	assert.False(t, ok)
}

func TestExtractLargestBalancedJSON_BracesInsideStringsDontConfuseDepth(t *testing.T) {
	raw := `{"tasks":[{"title":"use curly braces like {this} in prose"}]}`
	block, ok := ExtractLargestBalancedJSON(raw)
	require.True(t, ok)
	assert.JSONEq(t, raw, block)
}

func TestParsePlan_ExtractsTasks(t *testing.T) {
	raw := `chatter {"tasks":[{"title":"add cache","description":"d","priority":2,"acceptance_criteria":["works"],"dependencies":["t0"],"gates":[{"name":"build","command":"go","pass_criteria":"exit_code_zero"}]}]} more chatter`
	plan, ok := ParsePlan(raw)
	require.True(t, ok)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "add cache", plan.Tasks[0].Title)
	assert.Equal(t, 2, plan.Tasks[0].Priority)
	assert.Equal(t, []string{"works"}, plan.Tasks[0].AcceptanceCriteria)
	require.Len(t, plan.Tasks[0].GateSpecs, 1)
	assert.Equal(t, "build", plan.Tasks[0].GateSpecs[0].Name)
}

func TestParsePlan_MissingTasksFieldFails(t *testing.T) {
	_, ok := ParsePlan(`{"status":"ok"}`)
	assert.False(t, ok)
}

func TestParseArchitecture_ExtractsOptionsAndADRs(t *testing.T) {
	raw := `{"options":[{"id":"opt-1","title":"use redis","pros":["fast"],"cons":["ops burden"],"tradeoffs":["cost vs latency"]}],"adrs":["# ADR 1\nuse redis"]}`
	arch, ok := ParseArchitecture(raw)
	require.True(t, ok)
	require.Len(t, arch.Options, 1)
	assert.Equal(t, "opt-1", arch.Options[0].ID)
	require.Len(t, arch.ADRs, 1)
}

func TestParse_FallsBackToFreeformOnMalformedInput(t *testing.T) {
	out := Parse("the engine produced no JSON at all, just prose")
	require.NotNil(t, out.Freeform)
	assert.Nil(t, out.Plan)
	assert.Nil(t, out.Architecture)
}

func TestParse_NeverPanicsOnTruncatedJSON(t *testing.T) {
	assert.NotPanics(t, func() {
		Parse(`{"tasks": [{"title": "unterminated`)
	})
}
