package tokenest

import (
	"testing"

	"github.com/Avyukth/coding-agent-session-search/internal/model"
)

func TestEstimateEmpty(t *testing.T) {
	if got := Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}
}

func TestEstimateShortNonEmpty(t *testing.T) {
	if got := Estimate("hi"); got != 1 {
		t.Errorf("Estimate(\"hi\") = %d, want 1", got)
	}
}

func TestEstimateScalesWithLength(t *testing.T) {
	s := "xxxxxxxxxxxxxxxxxxxx" // 20 chars
	if got, want := Estimate(s), 5; got != want {
		t.Errorf("Estimate(20 chars) = %d, want %d", got, want)
	}
}

func TestEstimateConversation(t *testing.T) {
	conv := &model.NormalizedConversation{
		Messages: []model.NormalizedMessage{
			{Role: model.RoleUser, Content: "hello there"},
			{Role: model.RoleAssistant, Content: "hi"},
		},
	}
	got := EstimateConversation(conv)
	if got <= 0 {
		t.Errorf("EstimateConversation = %d, want > 0", got)
	}
}
