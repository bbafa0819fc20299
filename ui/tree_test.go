package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTreePrefix(t *testing.T) {
	tests := []struct {
		name         string
		depth        int
		isLast       bool
		parentIsLast []bool
		want         string
	}{
		{
			name:  "root has no prefix",
			depth: 0,
			want:  "",
		},
		{
			name:   "first level branch",
			depth:  1,
			isLast: false,
			want:   TreeBranch,
		},
		{
			name:   "first level last branch",
			depth:  1,
			isLast: true,
			want:   TreeLastBranch,
		},
		{
			name:         "nested under continuing parent",
			depth:        2,
			isLast:       false,
			parentIsLast: []bool{false},
			want:         TreeContinue + TreeBranch,
		},
		{
			name:         "nested under last parent",
			depth:        2,
			isLast:       true,
			parentIsLast: []bool{true},
			want:         TreeIndent + TreeLastBranch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTreePrefix(tt.depth, tt.isLast, tt.parentIsLast))
		})
	}
}

func TestBuildBoxHeaderWidensForLongTitles(t *testing.T) {
	header := BuildBoxHeader("a very long title indeed", 10)
	lines := strings.Split(strings.TrimRight(header, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "a very long title indeed")
}

func TestBuildBoxLineTruncatesByRunes(t *testing.T) {
	line := BuildBoxLine("ábcdéfghíjklmnó", 12)
	assert.Contains(t, line, "...")
	assert.True(t, strings.HasPrefix(line, BoxVertical))
}
