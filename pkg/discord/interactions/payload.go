package interactions

import (
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Payload is a decoded interaction plus the category of the channel it was
// invoked from.
type Payload struct {
	*discordgo.Interaction

	// ParentID is channel.parent_id from the payload; empty outside a category.
	ParentID string
}

type channelEnvelope struct {
	Channel *struct {
		ParentID string `json:"parent_id"`
	} `json:"channel"`
}

// Decode parses a verified interaction body.
func Decode(body []byte) (*Payload, error) {
	var i discordgo.Interaction
	if err := json.Unmarshal(body, &i); err != nil {
		return nil, fmt.Errorf("decode interaction: %w", err)
	}

	var env channelEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode interaction channel: %w", err)
	}

	p := &Payload{Interaction: &i}
	if env.Channel != nil {
		p.ParentID = env.Channel.ParentID
	}
	return p, nil
}

// IsPing reports whether the payload is Discord's endpoint handshake.
func (p *Payload) IsPing() bool {
	return p.Type == discordgo.InteractionPing
}

// IsCommand reports whether the payload invokes an application command.
func (p *Payload) IsCommand() bool {
	return p.Type == discordgo.InteractionApplicationCommand
}

// CommandName returns the invoked command name, or "" for other interaction types.
func (p *Payload) CommandName() string {
	if !p.IsCommand() || p.Data == nil {
		return ""
	}
	return p.ApplicationCommandData().Name
}

// StringOption returns the value of the string option called name.
// Options of any other type are ignored.
func (p *Payload) StringOption(name string) (string, bool) {
	if !p.IsCommand() || p.Data == nil {
		return "", false
	}
	for _, opt := range p.ApplicationCommandData().Options {
		if opt == nil || opt.Name != name || opt.Type != discordgo.ApplicationCommandOptionString {
			continue
		}
		v, ok := opt.Value.(string)
		return v, ok
	}
	return "", false
}
