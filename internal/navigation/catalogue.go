package navigation

import "strings"

// Tab is an entry of a navigation bar.
type Tab struct {
	To    string `json:"to"`
	Label string `json:"label"`
	// MatchPrefix keeps the tab highlighted on every page under it.
	MatchPrefix string `json:"matchPrefix,omitempty"`
}

// Active reports whether the tab is the current one for path.
func (t Tab) Active(path string) bool {
	if t.MatchPrefix != "" {
		return path == t.MatchPrefix || strings.HasPrefix(path, t.MatchPrefix+"/")
	}
	return path == t.To
}

// SubPage is a page of a pillar.
type SubPage struct {
	To         string `json:"to"`
	Label      string `json:"label"`
	OpenCreate bool   `json:"openCreate"`
}

// Pillar groups the pages of one area of the app.
type Pillar struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	SubPages []SubPage `json:"subPages"`
}

// BottomTabs are the primary navigation tabs.
var BottomTabs = []Tab{
	{To: "/", Label: "Home"},
	{To: "/sessions/work", Label: "Sessions", MatchPrefix: "/sessions"},
	{To: "/stocks/inventory", Label: "Stocks", MatchPrefix: "/stocks"},
	{To: "/tracking/recurring", Label: "Tracking", MatchPrefix: "/tracking"},
}

// SecondaryTabs are reached from the menu.
var SecondaryTabs = []Tab{
	{To: "/stats/work", Label: "Statistics", MatchPrefix: "/stats"},
	{To: "/settings", Label: "Settings"},
	{To: "/projects", Label: "Projects"},
	{To: "/trash", Label: "Trash"},
}

// Pillars is the catalogue behind the create menu.
var Pillars = []Pillar{
	{
		ID:    "sessions",
		Label: "Sessions",
		SubPages: []SubPage{
			{To: "/sessions/work", Label: "Work", OpenCreate: true},
			{To: "/sessions/workout/programs", Label: "Workout", OpenCreate: true},
			{To: "/sessions/cardio", Label: "Cardio", OpenCreate: true},
		},
	},
	{
		ID:    "stocks",
		Label: "Stocks",
		SubPages: []SubPage{
			{To: "/stocks/inventory", Label: "Inventory", OpenCreate: true},
			{To: "/stocks/shopping", Label: "Shopping", OpenCreate: true},
			{To: "/stocks/routines", Label: "Routines", OpenCreate: true},
		},
	},
	{
		ID:    "tracking",
		Label: "Tracking",
		SubPages: []SubPage{
			{To: "/tracking/recurring", Label: "Trackers", OpenCreate: true},
			{To: "/tracking/events", Label: "Events", OpenCreate: true},
			{To: "/tracking/journal", Label: "Journal", OpenCreate: true},
		},
	},
}

// FindSubPage looks up a pillar sub-page by route path.
func FindSubPage(path string) (SubPage, bool) {
	for _, p := range Pillars {
		for _, s := range p.SubPages {
			if s.To == path {
				return s, true
			}
		}
	}
	return SubPage{}, false
}

// PillarOf returns the pillar owning path.
func PillarOf(path string) (Pillar, bool) {
	for _, p := range Pillars {
		prefix := "/" + p.ID
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return p, true
		}
	}
	return Pillar{}, false
}
