package commands

import "github.com/bwmarrin/discordgo"

// Outcome classifies how a command invocation ended, for logs and the audit trail.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNoop     Outcome = "noop"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeUpstream Outcome = "upstream_failure"
	OutcomeInternal Outcome = "internal_error"
)

// Reply is a handler's answer: the interaction response plus how it ended.
type Reply struct {
	Response *discordgo.InteractionResponse
	Outcome  Outcome
	Detail   string
}

func message(content string, flags discordgo.MessageFlags) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}
}

// Pong answers Discord's endpoint handshake.
func Pong() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}
}

// Public replies in the channel for everyone to see.
func Public(content string) *discordgo.InteractionResponse {
	return message(content, 0)
}

// Ephemeral replies to the invoking user only.
func Ephemeral(content string) *discordgo.InteractionResponse {
	return message(content, discordgo.MessageFlagsEphemeral)
}

func success(content string) Reply {
	return Reply{Response: Public(content), Outcome: OutcomeSuccess}
}

func failure(outcome Outcome, content, detail string) Reply {
	return Reply{Response: Ephemeral(content), Outcome: outcome, Detail: detail}
}
