package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newFakeClient(run runFunc) *Client {
	c := NewClient(time.Second, zap.NewNop().Sugar())
	c.run = run
	return c
}

func TestCritique(t *testing.T) {
	var gotPrompt string
	client := newFakeClient(func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "  \"That single file is doing way too much, Architect.\"  ", nil
	})

	got := client.Critique(context.Background(), CritiqueRequest{
		CriticName:     "SpeedDemon",
		CriticApproach: "ship fast",
		CreatorName:    "Architect",
		Artifact:       "<html>big page</html>",
	})

	if got != "That single file is doing way too much, Architect." {
		t.Errorf("Critique = %q", got)
	}
	for _, want := range []string{"SpeedDemon", "ship fast", "Architect", "<html>big page</html>"} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCritique_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		run  runFunc
	}{
		{"error", func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("boom")
		}},
		{"empty response", func(ctx context.Context, prompt string) (string, error) {
			return "   ", nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(tt.run)
			got := client.Critique(context.Background(), CritiqueRequest{CreatorName: "Wildcard"})
			want := "Wildcard's work is... fine, I guess. Nothing special."
			if got != want {
				t.Errorf("Critique = %q, want %q", got, want)
			}
		})
	}
}

func TestCritique_ClipsHugeArtifact(t *testing.T) {
	var gotPrompt string
	client := newFakeClient(func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "ok", nil
	})
	client.Critique(context.Background(), CritiqueRequest{
		CreatorName: "X",
		Artifact:    strings.Repeat("a", 10000),
	})
	if len(gotPrompt) > 6000 {
		t.Errorf("prompt length %d, artifact was not clipped", len(gotPrompt))
	}
	if !strings.Contains(gotPrompt, "(truncated)") {
		t.Error("clipped artifact should be marked truncated")
	}
}

func TestDefense(t *testing.T) {
	client := newFakeClient(func(ctx context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "too slow") || !strings.Contains(prompt, "too messy") {
			t.Errorf("prompt missing critiques: %q", prompt)
		}
		return "Speed IS the feature!", nil
	})
	got := client.Defense(context.Background(), "SpeedDemon", "ship fast", []string{"too slow", "too messy"})
	if got != "Speed IS the feature!" {
		t.Errorf("Defense = %q", got)
	}
}

func TestDefense_Fallback(t *testing.T) {
	client := newFakeClient(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("timeout")
	})
	got := client.Defense(context.Background(), "Architect", "plan first", nil)
	if got != "Whatever, I like what I built!" {
		t.Errorf("Defense fallback = %q", got)
	}
}

func TestSavageness(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     int
	}{
		{"plain number", "7", nil, 21},
		{"number with prose", "I'd say that's an 8 out of 10.", nil, 24},
		{"minimum", "1", nil, 3},
		{"maximum", "10", nil, 30},
		{"over scale clamps", "15", nil, 30},
		{"zero clamps up", "0", nil, 3},
		{"no number", "pretty savage honestly", nil, DefaultDamage},
		{"judge error", "", errors.New("boom"), DefaultDamage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(func(ctx context.Context, prompt string) (string, error) {
				return tt.response, tt.err
			})
			if got := client.Savageness(context.Background(), "your code is sad"); got != tt.want {
				t.Errorf("Savageness = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"json envelope", `{"result": "the critique", "is_error": false}`, "the critique"},
		{"raw text", "  just plain text\n", "just plain text"},
		{"envelope without result", `{"is_error": true}`, `{"is_error": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseResult([]byte(tt.raw)); got != tt.want {
				t.Errorf("parseResult = %q, want %q", got, tt.want)
			}
		})
	}
}
