package fpl

import "time"

type Team struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Strength  int    `json:"strength"`
}

type Player struct {
	ID                int    `json:"id"`
	WebName           string `json:"web_name"`
	TeamID            int    `json:"team"`
	ElementType       int    `json:"element_type"`
	NowCost           int    `json:"now_cost"`
	TotalPoints       int    `json:"total_points"`
	Form              string `json:"form"`
	SelectedByPercent string `json:"selected_by_percent"`
	Status            string `json:"status"`
	News              string `json:"news"`
}

type Fixture struct {
	ID              int     `json:"id"`
	Event           *int    `json:"event"`
	TeamH           int     `json:"team_h"`
	TeamA           int     `json:"team_a"`
	TeamHDifficulty int     `json:"team_h_difficulty"`
	TeamADifficulty int     `json:"team_a_difficulty"`
	KickoffTime     *string `json:"kickoff_time"`
	Finished        bool    `json:"finished"`
}

// Snapshot is the read-only view of the game used to build prompt context.
type Snapshot struct {
	Teams     []Team    `json:"teams"`
	Players   []Player  `json:"players"`
	Fixtures  []Fixture `json:"fixtures"`
	FetchedAt time.Time `json:"fetched_at"`
}

var positions = map[int]string{1: "GKP", 2: "DEF", 3: "MID", 4: "FWD"}

// Position maps element_type to its short label.
func (p Player) Position() string {
	if s, ok := positions[p.ElementType]; ok {
		return s
	}
	return "UNK"
}

// TeamIndex returns team short names keyed by id.
func (s *Snapshot) TeamIndex() map[int]string {
	idx := make(map[int]string, len(s.Teams))
	for _, t := range s.Teams {
		idx[t.ID] = t.ShortName
	}
	return idx
}
