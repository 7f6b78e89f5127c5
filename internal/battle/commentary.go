package battle

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/silver2dream/agent-arena/internal/config"
	"github.com/silver2dream/agent-arena/internal/judge"
	"github.com/silver2dream/agent-arena/internal/speech"
)

// artifactFile is the one file inspected for critique generation.
const artifactFile = "index.html"

// Critic generates critiques, defenses, and savageness damage. Satisfied by
// judge.Client; faked in tests.
type Critic interface {
	Critique(ctx context.Context, req judge.CritiqueRequest) string
	Defense(ctx context.Context, creatorName, approach string, critiques []string) string
	Savageness(ctx context.Context, critique string) int
}

// CritiqueEntry is one scored hit from the commentary round, kept for the
// battle record.
type CritiqueEntry struct {
	Critic   string
	Creator  string
	Critique string
	Damage   int
}

// Commentary runs the post-battle review round: for each creator, the other
// competitors critique the produced artifact in parallel, critiques are
// spoken sequentially and scored into damage, the creator defends for a
// fixed heal and counter-attacks one random critic.
type Commentary struct {
	competitors []config.Competitor
	artifacts   map[string]string
	state       *State
	announcer   Announcer
	critic      Critic
	rng         *rand.Rand
	out         io.Writer
	colored     bool
	log         *zap.SugaredLogger
	entries     []CritiqueEntry
}

// CommentaryParams collects the dependencies for a commentary round.
type CommentaryParams struct {
	Competitors []config.Competitor
	Artifacts   map[string]string
	State       *State
	Announcer   Announcer
	Critic      Critic
	Rng         *rand.Rand
	Out         io.Writer
	Colored     bool
	Log         *zap.SugaredLogger
}

// NewCommentary builds the engine. Artifacts maps competitor name to its
// working directory.
func NewCommentary(p CommentaryParams) *Commentary {
	return &Commentary{
		competitors: p.Competitors,
		artifacts:   p.Artifacts,
		state:       p.State,
		announcer:   p.Announcer,
		critic:      p.Critic,
		rng:         p.Rng,
		out:         p.Out,
		colored:     p.Colored,
		log:         p.Log,
	}
}

// Run reviews every competitor's work in roster order. Creators without an
// artifact are skipped entirely.
func (c *Commentary) Run(ctx context.Context) {
	fmt.Fprintln(c.out, "\n🎤 COMMENTARY ROUND - Let's Review Each Other's Work!")

	for _, creator := range c.competitors {
		artifact, ok := c.loadArtifact(creator.Name)
		if !ok {
			c.log.Infow("skipping review, no artifact", "competitor", creator.Name)
			continue
		}
		c.reviewCreator(ctx, creator, artifact)
	}
}

func (c *Commentary) reviewCreator(ctx context.Context, creator config.Competitor, artifact string) {
	fmt.Fprintf(c.out, "\n📺 Reviewing %s's work...\n", creator.Name)
	c.say(c.competitors[0], fmt.Sprintf("Alright, let's take a look at what %s built.", creator.Name))

	critics := c.criticsOf(creator.Name)

	// generate in parallel, speak strictly in order
	critiques := make([]string, len(critics))
	var wg sync.WaitGroup
	for i, critic := range critics {
		wg.Add(1)
		go func(i int, critic config.Competitor) {
			defer wg.Done()
			critiques[i] = c.critic.Critique(ctx, judge.CritiqueRequest{
				CriticName:     critic.Name,
				CriticApproach: critic.Approach,
				CreatorName:    creator.Name,
				Artifact:       artifact,
			})
		}(i, critic)
	}
	wg.Wait()

	for i, critic := range critics {
		c.say(critic, critiques[i])
		damage := c.critic.Savageness(ctx, critiques[i])
		hp := c.state.ApplyDamage(creator.Name, damage)
		c.entries = append(c.entries, CritiqueEntry{
			Critic: critic.Name, Creator: creator.Name,
			Critique: critiques[i], Damage: damage,
		})
		fmt.Fprintf(c.out, "💥 %s takes %d damage! HP: %d\n", creator.Name, damage, hp)
	}

	defense := c.critic.Defense(ctx, creator.Name, creator.Approach, critiques)
	c.say(creator, defense)
	hp := c.state.Restore(creator.Name, HealAmount)
	fmt.Fprintf(c.out, "🛡️  %s defends and recovers %d HP! HP: %d\n", creator.Name, HealAmount, hp)

	c.counterAttack(ctx, creator, critics)
}

// counterAttack lets the creator fire back at one random critic, scored and
// applied through the same path as a regular critique.
func (c *Commentary) counterAttack(ctx context.Context, creator config.Competitor, critics []config.Competitor) {
	if len(critics) == 0 {
		return
	}
	target := critics[c.rng.Intn(len(critics))]
	targetArtifact, ok := c.loadArtifact(target.Name)
	if !ok {
		return
	}
	counter := c.critic.Critique(ctx, judge.CritiqueRequest{
		CriticName:     creator.Name,
		CriticApproach: creator.Approach,
		CreatorName:    target.Name,
		Artifact:       targetArtifact,
	})
	c.say(creator, counter)
	damage := c.critic.Savageness(ctx, counter)
	hp := c.state.ApplyDamage(target.Name, damage)
	c.entries = append(c.entries, CritiqueEntry{
		Critic: creator.Name, Creator: target.Name,
		Critique: counter, Damage: damage,
	})
	fmt.Fprintf(c.out, "💥 %s counter-attacks %s for %d damage! HP: %d\n", creator.Name, target.Name, damage, hp)
}

// Entries returns the scored critiques from the round, in spoken order.
func (c *Commentary) Entries() []CritiqueEntry {
	return append([]CritiqueEntry{}, c.entries...)
}

func (c *Commentary) criticsOf(creatorName string) []config.Competitor {
	critics := make([]config.Competitor, 0, len(c.competitors)-1)
	for _, competitor := range c.competitors {
		if competitor.Name != creatorName {
			critics = append(critics, competitor)
		}
	}
	return critics
}

// loadArtifact reads the creator's expected output file.
func (c *Commentary) loadArtifact(name string) (string, bool) {
	dir, ok := c.artifacts[name]
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(dir, artifactFile))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *Commentary) say(speaker config.Competitor, text string) {
	color := ""
	if c.colored {
		color = speaker.Color
	}
	c.announcer.Enqueue(speech.Utterance{
		Text:    text,
		VoiceID: speaker.VoiceID,
		Speaker: speaker.Name,
		Color:   color,
	})
}
