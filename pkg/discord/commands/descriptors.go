package commands

import "github.com/bwmarrin/discordgo"

// Command names as registered with Discord.
const (
	AddChallengeName    = "addchal"
	MarkSolvedName      = "solved"
	MarkUnsolvedName    = "unsolved"
	RenameChallengeName = "renamechal"
	AddVoiceChannelName = "newvoicechannel"
	nameOptionName      = "name"
	newNameOptionName   = "newname"
)

// Descriptors returns the five slash commands in registration order.
// A fresh slice is built on each call so callers cannot mutate shared state.
func Descriptors() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        AddChallengeName,
			Description: "Add a new challenge channel",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption(nameOptionName, "The name of the new challenge"),
			},
		},
		{
			Name:        MarkSolvedName,
			Description: "Mark a challenge as solved",
		},
		{
			Name:        MarkUnsolvedName,
			Description: "Mark a challenge as unsolved",
		},
		{
			Name:        RenameChallengeName,
			Description: "Rename a challenge channel",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption(newNameOptionName, "The new name for the channel"),
			},
		},
		{
			Name:        AddVoiceChannelName,
			Description: "Add a new voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption(nameOptionName, "The name of the new voice channel"),
			},
		},
	}
}

func stringOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    true,
	}
}
