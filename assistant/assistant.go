// Package assistant composes heuristic answers to free-form traffic
// queries from a traffic snapshot. It has no state of its own; every call
// works from the snapshot it is handed.
package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trafficdeck/syncserver/traffic"
)

// Thresholds above which the assistant starts recommending action.
const (
	highDensity     = 40.0
	highVolume      = 70
	moderateDensity = 25.0
)

// Response is the assistant's answer to a query.
type Response struct {
	Reply       string           `json:"reply"`
	Suggestions []string         `json:"suggestions"`
	Traffic     traffic.Snapshot `json:"traffic"`
}

// Respond summarizes the snapshot per direction and attaches suggestions
// where density or volume crosses the thresholds. Prompts mentioning
// congestion get an alert preamble ahead of the summary.
func Respond(prompt string, snap traffic.Snapshot) Response {
	dirs := make([]string, 0, len(snap))
	for dir := range snap {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	lines := make([]string, 0, len(dirs))
	suggestions := []string{}
	for _, dir := range dirs {
		info := snap[dir]
		lines = append(lines, fmt.Sprintf(
			"%s: density %.0f veh/km, total %d vehicles; first ETA %.0fs, second ETA %.0fs",
			dir, info.Density, info.Volumes.Total,
			info.FirstGroup.EstimatedTimeToReach, info.SecondGroup.EstimatedTimeToReach))

		switch {
		case info.Density >= highDensity || info.Volumes.Total >= highVolume:
			suggestions = append(suggestions, fmt.Sprintf("%s: high density - consider reducing inflow", dir))
		case info.Density >= moderateDensity:
			suggestions = append(suggestions, fmt.Sprintf("%s: moderate density - monitor traffic", dir))
		}
	}

	summary := "Traffic Summary:\n" + strings.Join(lines, "\n")

	reply := summary
	if len(suggestions) > 0 {
		reply += "\n\nRecommendations:\n- " + strings.Join(suggestions, "\n- ")
	}

	if strings.Contains(strings.ToLower(prompt), "congestion") {
		reply = "Congestion Alert:\n" + strings.Join(lines, "\n") + "\n\n" + reply
	}

	return Response{
		Reply:       reply,
		Suggestions: suggestions,
		Traffic:     snap,
	}
}
