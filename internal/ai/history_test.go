package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundHistory(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "u1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: ""},
		{Role: RoleUser, Content: "u2"},
		{Role: RoleAssistant, Content: "a2"},
		{Role: RoleUser, Content: "u3"},
	}

	tests := []struct {
		name  string
		turns int
		want  []string
	}{
		{name: "unbounded", turns: 0, want: []string{"sys", "u1", "a1", "u2", "a2", "u3"}},
		{name: "last three", turns: 3, want: []string{"sys", "u2", "a2", "u3"}},
		{name: "last one", turns: 1, want: []string{"sys", "u3"}},
		{name: "more than available", turns: 50, want: []string{"sys", "u1", "a1", "u2", "a2", "u3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BoundHistory(msgs, tt.turns, 0)
			contents := make([]string, 0, len(got))
			for _, m := range got {
				contents = append(contents, m.Content)
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestBoundHistoryTruncatesRunes(t *testing.T) {
	got := BoundHistory([]Message{{Role: RoleUser, Content: "żółć gęślą"}}, 0, 4)
	assert.Equal(t, "żółć", got[0].Content)
}

func TestBoundHistoryDoesNotMutateInput(t *testing.T) {
	in := []Message{{Role: RoleUser, Content: "abcdef"}}
	_ = BoundHistory(in, 0, 2)
	assert.Equal(t, "abcdef", in[0].Content)
}
