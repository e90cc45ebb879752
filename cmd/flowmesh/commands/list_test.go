package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsYAMLFile(t *testing.T) {
	cases := map[string]bool{
		"pipeline.yaml": true,
		"pipeline.yml":  true,
		"pipeline.json": false,
		"yaml":          false,
		".yaml":         false,
		"a.yaml":        true,
	}
	for name, want := range cases {
		require.Equal(t, want, isYAMLFile(name), "isYAMLFile(%q)", name)
	}
}
