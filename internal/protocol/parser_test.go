package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected *Statement
	}{
		{
			name:     "Bare node",
			input:    "NODE 7\r\n",
			expected: &Statement{Kind: KindNode, ID: 7},
		},
		{
			name:  "Node with labels and properties",
			input: `node 1 :Site :Building name="North wing" floor=2`,
			expected: &Statement{
				Kind:       KindNode,
				ID:         1,
				Labels:     []string{"Site", "Building"},
				Properties: map[string]string{"name": "North wing", "floor": "2"},
			},
		},
		{
			name:  "Edge with quoted relation and trailing comment",
			input: `EDGE 1 2 "has child" weight=1 # structural`,
			expected: &Statement{
				Kind:       KindEdge,
				Source:     1,
				Target:     2,
				Relation:   "has child",
				Properties: map[string]string{"weight": "1"},
			},
		},
		{
			name:  "Escapes and equals in values",
			input: `NODE 3 note="say \"hi\"" expr=a=b empty=`,
			expected: &Statement{
				Kind:       KindNode,
				ID:         3,
				Properties: map[string]string{"note": `say "hi"`, "expr": "a=b", "empty": ""},
			},
		},
		{
			name:  "Quoted label-looking value is a property",
			input: `NODE 4 tag=":Site"`,
			expected: &Statement{
				Kind:       KindNode,
				ID:         4,
				Properties: map[string]string{"tag": ":Site"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{"", "   ", "# only a comment"} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrEmptyLine, "line %q", line)
	}

	_, err := Parse("VERTEX 1")
	assert.ErrorIs(t, err, ErrUnknownKind)

	bad := []string{
		"NODE",
		"NODE 0",
		"NODE x",
		"NODE 1 : ",
		"NODE 1 loose",
		"NODE 1 :Site name=\"open",
		"NODE 1 name=\"x\"y",
		"NODE 1 =v",
		"EDGE 1 2",
		"EDGE 1 2 \"\"",
		"EDGE 1 -2 rel",
		`NODE 1 a="\`,
	}
	for _, line := range bad {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrSyntax, "line %q", line)
	}
}
