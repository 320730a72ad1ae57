package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/ctfchannels/pkg/discord/platform"
	"github.com/small-frappuccino/ctfchannels/pkg/naming"
)

const (
	msgCannotFetch  = "❌ Could not fetch the current channel."
	msgTextOnly     = "ℹ️ This command can only be used in a text channel."
	msgRenameFailed = "❌ Failed to update the channel name. Check that the bot has the `Manage Channels` permission or try again later."
)

// channelTemplate describes one of the channel-creating commands.
type channelTemplate struct {
	kind        discordgo.ChannelType
	marker      naming.Marker
	missingText string
	successText string
}

var (
	challengeChannel = channelTemplate{
		kind:        discordgo.ChannelTypeGuildText,
		marker:      naming.Pending,
		missingText: "Error: name is required when performing " + AddChallengeName,
		successText: "✅ New Challenge Found!!! \n<#%s>",
	}
	voiceChannel = channelTemplate{
		kind:        discordgo.ChannelTypeGuildVoice,
		marker:      naming.None,
		missingText: "Error: name is required when performing " + AddVoiceChannelName,
		successText: "✅ New Voice Channel Found!!! \n<#%s>",
	}
)

func handleAddChallenge(ctx context.Context, channels ChannelService, inv *Invocation) Reply {
	return createChannel(ctx, channels, inv, challengeChannel)
}

func handleAddVoiceChannel(ctx context.Context, channels ChannelService, inv *Invocation) Reply {
	return createChannel(ctx, channels, inv, voiceChannel)
}

func createChannel(ctx context.Context, channels ChannelService, inv *Invocation, tmpl channelTemplate) Reply {
	raw, _ := inv.StringOption(nameOptionName)
	name := naming.NormalizeArgument(raw)
	if name == "" {
		return failure(OutcomeInvalid, tmpl.missingText, "missing name")
	}

	full := naming.ApplyMarker(tmpl.marker, name)
	ch, err := channels.CreateChannel(ctx, inv.GuildID, full, tmpl.kind, inv.ParentID)
	if err != nil {
		var upstream *platform.UpstreamError
		if errors.As(err, &upstream) {
			detail := fmt.Sprintf("status %d", upstream.StatusCode)
			if platform.IsMissingPermissions(err) {
				detail += ", bot lacks Manage Channels"
			}
			return failure(OutcomeUpstream,
				fmt.Sprintf("create channel error (%d): %s", upstream.StatusCode, upstream.Body),
				detail,
			)
		}
		inv.Logger.Error("Error calling Discord API", "err", err)
		return failure(OutcomeInternal, "create channel internal error", err.Error())
	}

	inv.Logger.Info("Successfully created channel", "name", ch.Name, "newChannelID", ch.ID)
	return success(fmt.Sprintf(tmpl.successText, ch.ID))
}

// markRule describes one of the marker-toggling commands.
type markRule struct {
	marker      naming.Marker
	alreadyText string
	successText string
}

var (
	markSolved = markRule{
		marker:      naming.Solved,
		alreadyText: "ℹ️ This channel is already marked as solved.",
		successText: "✅ Channel marked as solved.",
	}
	markUnsolved = markRule{
		marker:      naming.Pending,
		alreadyText: "ℹ️ This channel is already marked as unsolved.",
		successText: "✅ Channel marked as unsolved.",
	}
)

func markHandler(rule markRule) HandlerFunc {
	return func(ctx context.Context, channels ChannelService, inv *Invocation) Reply {
		ch, reply, ok := fetchTextChannel(ctx, channels, inv)
		if !ok {
			return reply
		}

		current := channelName(ch)
		if naming.HasMarker(current, rule.marker) {
			return failure(OutcomeNoop, rule.alreadyText, "already "+rule.marker.String())
		}

		_, base := naming.StripMarker(current)
		if !channels.RenameChannel(ctx, inv.ChannelID, naming.ApplyMarker(rule.marker, base)) {
			return failure(OutcomeUpstream, msgRenameFailed, "rename failed")
		}
		return success(rule.successText)
	}
}

func handleRenameChallenge(ctx context.Context, channels ChannelService, inv *Invocation) Reply {
	raw, _ := inv.StringOption(newNameOptionName)
	desired := naming.NormalizeArgument(raw)
	if desired == "" {
		inv.Logger.Warn("Missing or empty newname option")
		return failure(OutcomeInvalid, "❌ Please provide a valid new channel name.", "missing newname")
	}

	ch, reply, ok := fetchTextChannel(ctx, channels, inv)
	if !ok {
		return reply
	}

	current := channelName(ch)
	marker, _ := naming.StripMarker(current)
	final := naming.ApplyMarker(marker, desired)

	var markerNote string
	if marker != naming.None {
		markerNote = " (with marker)"
	}

	if final == current {
		return failure(OutcomeNoop, fmt.Sprintf("ℹ️ The channel is already named `%s`%s.", desired, markerNote), "unchanged")
	}

	if n := naming.Length(final); n > naming.MaxChannelNameLength {
		return failure(OutcomeInvalid,
			fmt.Sprintf("❌ Sorry, the new channel name (including marker %q) is too long (%d/%d characters). Please shorten it.",
				string(marker), n, naming.MaxChannelNameLength),
			"name too long",
		)
	}

	if !channels.RenameChannel(ctx, inv.ChannelID, final) {
		return failure(OutcomeUpstream,
			"❌ Failed to rename the channel. Check that the bot has the `Manage Channels` permission or try again later.",
			"rename failed",
		)
	}

	var keptNote string
	if marker != naming.None {
		keptNote = " (marker kept)"
	}
	return success(fmt.Sprintf("✅ Channel <#%s> renamed to `%s`%s.", inv.ChannelID, desired, keptNote))
}

// fetchTextChannel loads the invoking channel and checks that it is a guild text
// channel. When ok is false, reply holds the answer for the user.
func fetchTextChannel(ctx context.Context, channels ChannelService, inv *Invocation) (*discordgo.Channel, Reply, bool) {
	ch := channels.FetchChannel(ctx, inv.ChannelID)
	if ch == nil {
		return nil, failure(OutcomeUpstream, msgCannotFetch, "fetch failed"), false
	}
	if ch.Type != discordgo.ChannelTypeGuildText {
		return nil, failure(OutcomeInvalid, msgTextOnly, fmt.Sprintf("channel type %d", ch.Type)), false
	}
	return ch, Reply{}, true
}

func channelName(ch *discordgo.Channel) string {
	if ch.Name == "" {
		return naming.FallbackChannelName
	}
	return ch.Name
}
