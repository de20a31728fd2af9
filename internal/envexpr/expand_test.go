package envexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	env := map[string]string{"FOO": "bar", "A": "1", "B": "2", "X": "x"}
	lookup := func(name string) string { return env[name] }

	var testCases = []struct {
		description string
		input       string
		expect      string
	}{
		{description: "plain text", input: "just a plain string", expect: "just a plain string"},
		{description: "single reference", input: "value is ${env.FOO}", expect: "value is bar"},
		{description: "repeated references", input: "${env.A}-${env.B}-${env.A}", expect: "1-2-1"},
		{description: "unset is empty", input: "unset=${env.NOTSET}-end", expect: "unset=-end"},
		{description: "invalid name keeps prefix", input: "start ${env.X and ${env.FOO} end", expect: "start ${env.X and bar end"},
		{description: "unterminated", input: "tail ${env.FOO", expect: "tail ${env.FOO"},
		{description: "empty name", input: "oops ${env.} done", expect: "oops  done"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Expand(testCase.input, lookup), testCase.description)
	}
}

func TestExpandDefaultsToProcessEnv(t *testing.T) {
	t.Setenv("VIGIL_ENVEXPR_TEST", "hook")
	assert.Equal(t, "https://example.com/hook", Expand("https://example.com/${env.VIGIL_ENVEXPR_TEST}", nil))
}
