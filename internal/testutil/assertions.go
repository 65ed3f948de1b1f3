package testutil

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"testing"
)

// AssertJSONEqual asserts that two JSON strings are semantically equal.
func AssertJSONEqual(t *testing.T, expected, actual string) {
	t.Helper()

	var expectedJSON, actualJSON interface{}

	if err := json.Unmarshal([]byte(expected), &expectedJSON); err != nil {
		t.Fatalf("failed to parse expected JSON: %v", err)
	}

	if err := json.Unmarshal([]byte(actual), &actualJSON); err != nil {
		t.Fatalf("failed to parse actual JSON: %v", err)
	}

	if !reflect.DeepEqual(expectedJSON, actualJSON) {
		expectedPretty, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualPretty, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("JSON not equal:\nExpected:\n%s\n\nActual:\n%s", expectedPretty, actualPretty)
	}
}

// AssertSameTree asserts that two trees returned by ReadTree hold the same
// paths with byte-identical contents.
func AssertSameTree(t *testing.T, expected, actual map[string][]byte) {
	t.Helper()

	paths := make(map[string]struct{}, len(expected)+len(actual))
	for p := range expected {
		paths[p] = struct{}{}
	}
	for p := range actual {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	for _, p := range sorted {
		e, inExpected := expected[p]
		a, inActual := actual[p]
		switch {
		case !inActual:
			t.Errorf("missing %s", p)
		case !inExpected:
			t.Errorf("unexpected %s", p)
		case !bytes.Equal(e, a):
			t.Errorf("%s differs (%d vs %d bytes)", p, len(e), len(a))
		}
	}
}
