package config

import (
	"embed"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	arenaerrors "github.com/silver2dream/agent-arena/internal/errors"
)

//go:embed roster.yaml
var rosterFS embed.FS

// maxCompetitors caps a battle's roster slice. The speech pipeline is
// serialized, so past this point workers mostly wait on each other.
const maxCompetitors = 6

// Competitor is one configured persona driving one coding-agent instance.
// Immutable after load.
type Competitor struct {
	Name     string `yaml:"name"`
	Approach string `yaml:"approach"`
	VoiceID  string `yaml:"voice_id"`
	Port     int    `yaml:"port"`
	Color    string `yaml:"color"`

	Intro      string   `yaml:"intro"`
	Thinking   []string `yaml:"thinking"`
	TrashTalk  []string `yaml:"trash_talk"`
	SelfHype   []string `yaml:"self_hype"`
	Frustrated []string `yaml:"frustrated"`
	Victory    []string `yaml:"victory"`
}

// Roster is the registry of configured competitors. A battle selects a fixed
// subset from it.
type Roster struct {
	Competitors []Competitor `yaml:"competitors"`
}

// DefaultRoster loads the embedded roster.
func DefaultRoster() (*Roster, error) {
	data, err := rosterFS.ReadFile("roster.yaml")
	if err != nil {
		return nil, arenaerrors.NewConfigErrorWithCause("embedded roster missing", err)
	}
	return parseRoster(data)
}

// LoadRoster reads a roster from a yaml file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, arenaerrors.NewConfigErrorWithCause(fmt.Sprintf("failed to read roster %s", path), err)
	}
	return parseRoster(data)
}

func parseRoster(data []byte) (*Roster, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, arenaerrors.NewConfigErrorWithCause("failed to parse roster yaml", err)
	}
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	return &roster, nil
}

// Validate checks the roster for configuration mistakes.
func (r *Roster) Validate() error {
	if len(r.Competitors) < 2 {
		return arenaerrors.NewConfigError("roster needs at least 2 competitors")
	}

	names := make(map[string]bool)
	ports := make(map[int]bool)
	for _, c := range r.Competitors {
		if c.Name == "" {
			return arenaerrors.NewConfigError("competitor with empty name")
		}
		if names[c.Name] {
			return arenaerrors.NewConfigError(fmt.Sprintf("duplicate competitor name %q", c.Name))
		}
		names[c.Name] = true

		if c.Port <= 0 || c.Port > 65535 {
			return arenaerrors.NewConfigError(fmt.Sprintf("competitor %q has invalid port %d", c.Name, c.Port))
		}
		if ports[c.Port] {
			return arenaerrors.NewConfigError(fmt.Sprintf("duplicate competitor port %d", c.Port))
		}
		ports[c.Port] = true

		if c.VoiceID == "" {
			return arenaerrors.NewConfigError(fmt.Sprintf("competitor %q has no voice_id", c.Name))
		}
		for _, pool := range [][]string{c.Thinking, c.TrashTalk, c.SelfHype, c.Frustrated, c.Victory} {
			if len(pool) == 0 {
				return arenaerrors.NewConfigError(fmt.Sprintf("competitor %q has an empty phrase pool", c.Name))
			}
		}
	}
	return nil
}

// Select returns the first n competitors in roster order.
func (r *Roster) Select(n int) ([]Competitor, error) {
	if n < 2 {
		return nil, arenaerrors.NewConfigError("a battle needs at least 2 competitors")
	}
	if n > maxCompetitors {
		return nil, arenaerrors.NewConfigError(
			fmt.Sprintf("at most %d competitors per battle, %d requested", maxCompetitors, n))
	}
	if n > len(r.Competitors) {
		return nil, arenaerrors.NewConfigError(
			fmt.Sprintf("roster has %d competitors, %d requested", len(r.Competitors), n))
	}
	selected := make([]Competitor, n)
	copy(selected, r.Competitors[:n])
	return selected, nil
}

// TrashTalkLine fills a random trash-talk template with the opponent name.
func (c *Competitor) TrashTalkLine(rng *rand.Rand, opponent string) string {
	template := c.TrashTalk[rng.Intn(len(c.TrashTalk))]
	return strings.ReplaceAll(template, "{opponent}", opponent)
}

// ThinkingLine picks a random thinking or self-hype phrase.
func (c *Competitor) ThinkingLine(rng *rand.Rand) string {
	pool := append(append([]string{}, c.Thinking...), c.SelfHype...)
	return pool[rng.Intn(len(pool))]
}

// FrustratedLine picks a random frustration phrase.
func (c *Competitor) FrustratedLine(rng *rand.Rand) string {
	return c.Frustrated[rng.Intn(len(c.Frustrated))]
}

// VictoryLine picks a random victory phrase.
func (c *Competitor) VictoryLine(rng *rand.Rand) string {
	return c.Victory[rng.Intn(len(c.Victory))]
}
