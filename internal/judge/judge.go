package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDamage is applied when savageness scoring fails.
	DefaultDamage = 15

	// DamagePerPoint converts a 1-10 savageness score into hit points.
	DamagePerPoint = 3

	// MaxScore bounds the savageness scale.
	MaxScore = 10

	defaultTimeout = 45 * time.Second
)

// runFunc executes one judge prompt and returns its raw text response.
// Swappable so tests run without a claude binary.
type runFunc func(ctx context.Context, prompt string) (string, error)

// Client generates in-character critiques, defenses, and savageness scores
// by invoking the claude CLI in non-interactive print mode. Every method
// degrades to a fixed fallback instead of failing: a misbehaving judge must
// never stall a battle.
type Client struct {
	timeout time.Duration
	log     *zap.SugaredLogger
	run     runFunc
}

// NewClient builds a judge client. A non-positive timeout falls back to the
// default per-call timeout.
func NewClient(timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{timeout: timeout, log: log}
	c.run = c.runClaude
	return c
}

// CritiqueRequest describes one critic reviewing one creator's artifact.
type CritiqueRequest struct {
	CriticName     string
	CriticApproach string
	CreatorName    string
	Artifact       string
}

// Critique asks the judge for a short in-character roast of the creator's
// work. Never returns an empty string.
func (c *Client) Critique(ctx context.Context, req CritiqueRequest) string {
	prompt := fmt.Sprintf(
		"You are %s, an AI coding competitor whose style is: %s. "+
			"Your rival %s just finished building this:\n\n%s\n\n"+
			"Roast their work in ONE short spoken sentence, in character. "+
			"Be specific about what you see. No markdown, no quotes, just the sentence.",
		req.CriticName, req.CriticApproach, req.CreatorName, clipArtifact(req.Artifact))

	text, err := c.run(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		c.log.Warnw("critique generation failed, using fallback",
			"critic", req.CriticName, "creator", req.CreatorName, "error", err)
		return fmt.Sprintf("%s's work is... fine, I guess. Nothing special.", req.CreatorName)
	}
	return sanitizeLine(text)
}

// Defense asks the judge for the creator's comeback after hearing critiques.
func (c *Client) Defense(ctx context.Context, creatorName, approach string, critiques []string) string {
	prompt := fmt.Sprintf(
		"You are %s, an AI coding competitor whose style is: %s. "+
			"Your rivals just said this about your work:\n- %s\n\n"+
			"Fire back with ONE short spoken sentence defending what you built, in character. "+
			"No markdown, no quotes, just the sentence.",
		creatorName, approach, strings.Join(critiques, "\n- "))

	text, err := c.run(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		c.log.Warnw("defense generation failed, using fallback",
			"creator", creatorName, "error", err)
		return "Whatever, I like what I built!"
	}
	return sanitizeLine(text)
}

// Savageness scores a critique 1-10 and converts it to damage. Scoring
// failures return DefaultDamage so a flaky judge still lands a hit.
func (c *Client) Savageness(ctx context.Context, critique string) int {
	prompt := fmt.Sprintf(
		"Rate how savage this trash talk is on a scale of 1 to 10:\n\n%q\n\n"+
			"Respond with ONLY the number, nothing else.", critique)

	text, err := c.run(ctx, prompt)
	if err != nil {
		c.log.Warnw("savageness scoring failed, using default damage", "error", err)
		return DefaultDamage
	}
	score, ok := parseScore(text)
	if !ok {
		c.log.Warnw("savageness response unparseable, using default damage", "response", text)
		return DefaultDamage
	}
	return score * DamagePerPoint
}

// runClaude executes one prompt through the claude CLI with a per-call
// timeout and parses the JSON result envelope.
func (c *Client) runClaude(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "claude", "-p", prompt, "--output-format", "json")
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("judge call timed out after %s", c.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("judge call failed: %w", err)
	}
	return parseResult(out), nil
}

// parseResult unwraps the claude CLI JSON envelope, falling back to the raw
// trimmed output when the envelope is absent.
func parseResult(raw []byte) string {
	var envelope struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Result != "" {
		return envelope.Result
	}
	return strings.TrimSpace(string(raw))
}

var scoreRE = regexp.MustCompile(`\d+`)

// parseScore extracts the first integer from a judge response and clamps it
// onto the 1-10 scale. Out-of-range values count as valid but clamped, since
// an over-enthusiastic "11" still means maximally savage.
func parseScore(text string) (int, bool) {
	match := scoreRE.FindString(text)
	if match == "" {
		return 0, false
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	if score < 1 {
		score = 1
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score, true
}

// sanitizeLine flattens a judge response into one speakable line.
func sanitizeLine(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"")
	return strings.Join(strings.Fields(text), " ")
}

// clipArtifact bounds the artifact excerpt embedded in a critique prompt so
// a huge generated file does not blow out the prompt.
func clipArtifact(artifact string) string {
	const maxArtifact = 4000
	if len(artifact) <= maxArtifact {
		return artifact
	}
	return artifact[:maxArtifact] + "\n... (truncated)"
}
