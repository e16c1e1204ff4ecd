package impl

import (
	"context"
	"fmt"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/tools"
)

// =============================================================================
// Compiled-in catalog
// =============================================================================

var assistantSpec = core.AgentSpec{
	Name:        "Assistant",
	Role:        "General purpose assistant",
	Description: "A friendly assistant that remembers you between conversations.",
	Instructions: []string{
		"Answer concisely and ask a clarifying question when the request is ambiguous.",
		"Use the think tool to work through multi-step problems before answering.",
	},
	Tools:       []string{tools.NameThink, tools.NameCurrentTime},
	Markdown:    true,
	AddDatetime: true,
	Memory:      core.MemorySpec{Enabled: true, Agentic: true, HistoryRuns: 3},
}

var webSpec = core.AgentSpec{
	Name:        "Web Agent",
	Role:        "Search the web for information",
	Description: "Answers questions with fresh information from the web, citing sources.",
	Instructions: []string{
		"Always search the web before answering factual questions.",
		"Read the most relevant result with web_fetch when the snippet is not enough.",
		"Always include sources.",
	},
	Tools:    []string{tools.NameWebSearch, tools.NameWebFetch},
	Markdown: true,
	Stream:   true,
}

var financeSpec = core.AgentSpec{
	Name:        "Finance Agent",
	Role:        "Financial analyst",
	Description: "Financial analysis of companies, markets and crypto assets, including ESG factors.",
	Instructions: []string{
		"Search for the latest news and figures before analysing.",
		"Use tables to display financial data.",
		"Cover ESG considerations when analysing a company.",
		"State clearly that the analysis is not investment advice.",
	},
	Tools:       []string{tools.NameWebSearch, tools.NameWebFetch, tools.NameThink},
	Markdown:    true,
	AddDatetime: true,
}

var youtubeSpec = core.AgentSpec{
	Name:        "YouTube Agent",
	Role:        "Video content analyst",
	Description: "Summarizes YouTube videos with timestamps built from their captions.",
	Instructions: []string{
		"Read the video with youtube_transcript before answering.",
		"Start with a short summary, then list timestamps as [start - end]: summary.",
		"Only use timestamps that appear in the transcript.",
	},
	Tools:    []string{tools.NameYouTubeTranscript},
	Markdown: true,
	Stream:   true,
}

var researchSpec = core.AgentSpec{
	Name:        "Research Agent",
	Role:        "Research analyst",
	Description: "Researches a topic across sources, checks facts and cites them.",
	Instructions: []string{
		"Plan the research with the think tool before searching.",
		"Cross-check key claims in at least two sources.",
		"Finish with a references section listing every source used.",
	},
	Tools:       []string{tools.NameThink, tools.NameWebSearch, tools.NameWebFetch},
	Markdown:    true,
	AddDatetime: true,
	MaxSteps:    15,
}

var (
	destinationSpec = core.AgentSpec{
		Name:        "Destination Finder",
		Role:        "Find destinations that match the traveller's interests",
		Description: "Finds and compares destinations, seasons and local highlights.",
		Instructions: []string{
			"Search for destinations that match the request and compare the best three.",
			"Mention the best season to visit.",
		},
		Tools: []string{tools.NameWebSearch},
	}
	itinerarySpec = core.AgentSpec{
		Name:        "Itinerary Planner",
		Role:        "Plan day-by-day itineraries",
		Description: "Builds day-by-day itineraries with logistics and budget estimates.",
		Instructions: []string{
			"Produce a day-by-day plan with morning, afternoon and evening activities.",
			"Include transport between places and a rough budget.",
		},
		Tools:       []string{tools.NameWebSearch, tools.NameThink},
		AddDatetime: true,
	}
	travelTeamSpec = core.TeamSpec{
		Name:        "Travel Planning Team",
		Description: "Expert travel itineraries and logistics.",
		Mode:        core.ModeCoordinate,
		Members:     []string{destinationSpec.Name, itinerarySpec.Name},
		Instructions: []string{
			"Have the Destination Finder pick the destination before the Itinerary Planner plans the days.",
		},
		SuccessCriteria:     "a complete itinerary with destination, daily plan, transport and budget",
		ShowMemberResponses: true,
		Markdown:            true,
	}
)

func specAgent(spec core.AgentSpec) core.Factory {
	return func(ctx context.Context, b core.AgentBuilder) (core.Agent, error) {
		return b.BuildAgent(ctx, spec)
	}
}

func specTeam(team core.TeamSpec, members ...core.AgentSpec) core.Factory {
	return func(ctx context.Context, b core.AgentBuilder) (core.Agent, error) {
		built := make([]core.Agent, 0, len(members))
		for _, m := range members {
			a, err := b.BuildAgent(ctx, m)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", m.Name, err)
			}
			built = append(built, a)
		}
		return b.BuildTeam(ctx, team, built)
	}
}

func init() {
	core.RegisterAgent("assistant", specAgent(assistantSpec),
		assistantSpec.Name, assistantSpec.Description,
		"My name is Ava and I love science fiction.",
		"What do you remember about me?",
		"Help me plan my week: three deadlines, two meetings, one trip.")

	core.RegisterAgent("web", specAgent(webSpec),
		webSpec.Name, webSpec.Description,
		"What's happening in France right now?",
		"Summarize the latest Go release notes.")

	core.RegisterAgent("finance", specAgent(financeSpec),
		financeSpec.Name, financeSpec.Description,
		"What's the latest news and financial performance of Tesla (TSLA)?",
		"Analyze Apple's ESG performance and sustainability metrics",
		"Compare Bitcoin and Ethereum market trends this week")

	core.RegisterAgent("youtube", specAgent(youtubeSpec),
		youtubeSpec.Name, youtubeSpec.Description,
		"Summarize this video: https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"Create timestamps for this tutorial: https://youtu.be/nLkBNnnA8Ac")

	core.RegisterAgent("research", specAgent(researchSpec),
		researchSpec.Name, researchSpec.Description,
		"Research the latest developments in quantum computing",
		"Find and analyze recent papers on climate change solutions",
		"Compare different approaches to renewable energy storage")

	core.RegisterTeam("travel_team", specTeam(travelTeamSpec, destinationSpec, itinerarySpec),
		travelTeamSpec.Name, travelTeamSpec.Description,
		"Plan a corporate retreat in Bali for 20 people",
		"Create a 5-day cultural itinerary in Rome",
		"Suggest budget travel options in Southeast Asia")
}
