package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionMatch(t *testing.T) {
	const file = "/proj/styles/foo.css"
	tests := []struct {
		name string
		cond any
		want bool
	}{
		{name: "regexp", cond: RegExp(`\.css$`, ""), want: true},
		{name: "regexp miss", cond: RegExp(`\.scss$`, ""), want: false},
		{name: "regexp ignore case", cond: RegExp(`\.CSS$`, "i"), want: true},
		{name: "unicode escape", cond: RegExp(`\.\u0063ss$`, ""), want: true},
		{name: "invalid regexp", cond: RegExp(`(`, ""), want: false},
		{name: "path prefix", cond: "/proj/styles", want: true},
		{name: "path prefix miss", cond: "/proj/src", want: false},
		{name: "any of", cond: []any{"/other", RegExp(`\.css$`, "")}, want: true},
		{name: "none of", cond: []any{"/other", RegExp(`\.js$`, "")}, want: false},
		{name: "function", cond: map[string]any{"$ref": "/module/rules/0/test", "kind": "function"}, want: false},
		{name: "and", cond: map[string]any{"and": []any{"/proj", RegExp(`css`, "")}}, want: true},
		{name: "not", cond: map[string]any{"not": RegExp(`\.css$`, "")}, want: false},
		{name: "empty object", cond: map[string]any{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCondition(tt.cond).Match(file))
		})
	}
}

func TestRuleMatches(t *testing.T) {
	const file = "/proj/foo.css"
	tests := []struct {
		name string
		rule map[string]any
		want bool
	}{
		{name: "test only", rule: map[string]any{"test": RegExp(`\.css$`, "")}, want: true},
		{name: "excluded", rule: map[string]any{"test": RegExp(`\.css$`, ""), "exclude": "/proj"}, want: false},
		{name: "exclude elsewhere", rule: map[string]any{"test": RegExp(`\.css$`, ""), "exclude": RegExp(`node_modules`, "")}, want: true},
		{name: "include elsewhere", rule: map[string]any{"test": RegExp(`\.css$`, ""), "include": "/proj/src"}, want: false},
		{name: "no condition", rule: map[string]any{"loader": "eslint-loader"}, want: false},
		{name: "one of", rule: map[string]any{"oneOf": []any{
			map[string]any{"test": RegExp(`\.svg$`, "")},
			map[string]any{"test": RegExp(`\.css$`, "")},
		}}, want: true},
		{name: "function test", rule: map[string]any{"test": map[string]any{"$ref": "/x", "kind": "function"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRule(tt.rule).Matches(file))
		})
	}
}

func TestUsesBabel(t *testing.T) {
	tests := []struct {
		name string
		rule map[string]any
		want bool
	}{
		{name: "loader", rule: map[string]any{"loader": "babel-loader"}, want: true},
		{name: "resolved loader", rule: map[string]any{"loader": "/x/node_modules/babel-loader/lib/index.js"}, want: true},
		{name: "use string", rule: map[string]any{"use": "babel-loader?cacheDirectory"}, want: true},
		{name: "use object", rule: map[string]any{"use": []any{map[string]any{"loader": "babel-loader", "options": map[string]any{}}}}, want: true},
		{name: "legacy loaders", rule: map[string]any{"loaders": []any{"babel-loader"}}, want: true},
		{name: "nested", rule: map[string]any{"oneOf": []any{map[string]any{"use": "babel-loader"}}}, want: true},
		{name: "other loader", rule: map[string]any{"use": []any{"ts-loader"}}, want: false},
		{name: "lookalike", rule: map[string]any{"loader": "mybabel-loaderx"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRule(tt.rule).UsesBabel())
		})
	}
}

func TestMergeRules(t *testing.T) {
	babel := map[string]any{"presets": []any{}}

	t.Run("empty project gets babel first and css last", func(t *testing.T) {
		rules := MergeRules("/proj", nil, "babel-loader", babel)
		require.Len(t, rules, 2)
		assert.Equal(t, "babel-loader", rules[0].Loader)
		assert.True(t, rules[0].Synthesized)
		assert.Equal(t, "style-loader!css-loader", rules[1].Loader)
	})

	t.Run("user rules keep their order", func(t *testing.T) {
		user := []Rule{
			ParseRule(map[string]any{"test": RegExp(`\.ts$`, ""), "use": "ts-loader"}),
			ParseRule(map[string]any{"test": RegExp(`\.svg$`, ""), "use": "svg-loader"}),
		}
		rules := MergeRules("/proj", user, "babel-loader", babel)
		require.Len(t, rules, 4)
		assert.Equal(t, "ts-loader", rules[1].Use)
		assert.Equal(t, "svg-loader", rules[2].Use)
	})

	t.Run("existing babel and css rules are respected", func(t *testing.T) {
		user := []Rule{
			ParseRule(map[string]any{"test": RegExp(`\.js$`, ""), "use": "babel-loader"}),
			ParseRule(map[string]any{"test": RegExp(`\.css$`, ""), "use": []any{"style-loader", "css-loader"}}),
		}
		rules := MergeRules("/proj", user, "babel-loader", babel)
		assert.Equal(t, user, rules)
	})

	t.Run("excluded css rule does not count", func(t *testing.T) {
		user := []Rule{
			ParseRule(map[string]any{"test": RegExp(`\.css$`, ""), "exclude": "/proj", "use": "raw-loader"}),
		}
		rules := MergeRules("/proj", user, "babel-loader", babel)
		require.Len(t, rules, 3)
		assert.Equal(t, "style-loader!css-loader", rules[2].Loader)
	})

	t.Run("babel only config gains css once", func(t *testing.T) {
		user := []Rule{ParseRule(map[string]any{"test": RegExp(`\.jsx?$`, ""), "use": map[string]any{"loader": "babel-loader"}})}
		once := MergeRules("/proj", user, "babel-loader", babel)
		require.Len(t, once, 2)
		assert.Equal(t, user[0], once[0])
		assert.Equal(t, "style-loader!css-loader", once[1].Loader)

		twice := MergeRules("/proj", once, "babel-loader", babel)
		assert.Len(t, twice, len(once))
		assert.Equal(t, once, twice)
	})

	t.Run("idempotent", func(t *testing.T) {
		user := []Rule{ParseRule(map[string]any{"test": RegExp(`\.svg$`, ""), "use": "svg-loader"})}
		once := MergeRules("/proj", user, "/tools/node_modules/babel-loader", babel)
		twice := MergeRules("/proj", once, "/tools/node_modules/babel-loader", babel)
		assert.Equal(t, once, twice)
	})
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, ProfileLegacy, ProfileFor(3))
	assert.Equal(t, ProfileLegacy, ProfileFor(1))
	assert.Equal(t, ProfileModern, ProfileFor(4))
	assert.Equal(t, ProfileModern, ProfileFor(5))

	user := ParseRule(map[string]any{"test": RegExp(`\.ts$`, ""), "options": map[string]any{"a": 1}})
	rules := MergeRules("/proj", []Rule{user}, "babel-loader", map[string]any{"presets": []any{}})

	legacy := ProfileLegacy.Emit(rules)
	require.Contains(t, legacy, "loaders")
	list := legacy["loaders"].([]any)
	babel := list[0].(map[string]any)
	assert.Contains(t, babel, "query")
	assert.NotContains(t, babel, "options")
	assert.Contains(t, list[1].(map[string]any), "options", "user rules pass through")
	assert.Contains(t, rules[0].Raw(), "options", "emitting does not mutate the rule")

	modern := ProfileModern.Emit(rules)
	require.Contains(t, modern, "rules")
	assert.Contains(t, modern["rules"].([]any)[0].(map[string]any), "options")
	assert.True(t, ProfileModern.HasMode())
	assert.False(t, ProfileLegacy.HasMode())
}
