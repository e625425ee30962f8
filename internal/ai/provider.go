package ai

import "context"

// Provider is a single-turn text completion backend. Implementations send one
// system+user prompt pair and return the raw textual response.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Proposal is one AI-suggested match for a subject attendee. Field names
// mirror the JSON schema the model is instructed to produce.
type Proposal struct {
	ID                   string   `mapstructure:"id"`
	Score                int      `mapstructure:"score"`
	Type                 string   `mapstructure:"type"`
	Reasoning            string   `mapstructure:"reasoning"`
	ConversationStarters []string `mapstructure:"conversation_starters"`
	SynergyFactors       []string `mapstructure:"synergy_factors"`
}
