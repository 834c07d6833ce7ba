package chat

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/fpl"
)

const (
	maxPromptPlayers  = 300
	maxPromptFixtures = 40
	maxPromptHistory  = 6
)

const instructions = `Answer as an FPL coach. Use only the data above.
Prices are in millions. Keep the answer under 250 words.
Use short paragraphs or bullet points and name players by their web name.
If the data does not cover the question, say what is missing.`

// BuildPrompt renders the snapshot as compact pipe-delimited records followed
// by the recent conversation and the question.
func BuildPrompt(snap *fpl.Snapshot, history []*models.ChatMessage, question string) string {
	var b strings.Builder
	teams := map[int]string{}
	if snap != nil {
		teams = snap.TeamIndex()

		b.WriteString("TEAMS id|short|name|strength\n")
		for _, t := range snap.Teams {
			fmt.Fprintf(&b, "%d|%s|%s|%d\n", t.ID, t.ShortName, t.Name, t.Strength)
		}

		players := slices.Clone(snap.Players)
		slices.SortStableFunc(players, func(x, y fpl.Player) int {
			return cmp.Compare(y.TotalPoints, x.TotalPoints)
		})
		if len(players) > maxPromptPlayers {
			players = players[:maxPromptPlayers]
		}
		b.WriteString("\nPLAYERS name|team|pos|price|points|form|selected%|status|news\n")
		for _, p := range players {
			fmt.Fprintf(&b, "%s|%s|%s|%.1f|%d|%s|%s|%s|%s\n",
				p.WebName, teams[p.TeamID], p.Position(), float64(p.NowCost)/10,
				p.TotalPoints, p.Form, p.SelectedByPercent, p.Status, oneLine(p.News))
		}

		b.WriteString("\nFIXTURES gw|home|away|home_fdr|away_fdr|kickoff\n")
		n := 0
		for _, f := range snap.Fixtures {
			if f.Finished {
				continue
			}
			if n == maxPromptFixtures {
				break
			}
			gw, kickoff := "-", "-"
			if f.Event != nil {
				gw = fmt.Sprint(*f.Event)
			}
			if f.KickoffTime != nil {
				kickoff = *f.KickoffTime
			}
			fmt.Fprintf(&b, "%s|%s|%s|%d|%d|%s\n", gw, teams[f.TeamH], teams[f.TeamA], f.TeamHDifficulty, f.TeamADifficulty, kickoff)
			n++
		}
	}

	if len(history) > maxPromptHistory {
		history = history[len(history)-maxPromptHistory:]
	}
	if len(history) > 0 {
		b.WriteString("\nCONVERSATION role|text\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s|%s\n", m.Role, oneLine(m.Content))
		}
	}

	b.WriteString("\nINSTRUCTIONS\n")
	b.WriteString(instructions)
	b.WriteString("\n\nQUESTION\n")
	b.WriteString(question)
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "|", "/")), " ")
}
