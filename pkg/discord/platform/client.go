// Package platform is the outbound side of the service: the handful of Discord
// REST calls the slash commands need, each made once with no retries.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/ctfchannels/pkg/errutil"
	"github.com/small-frappuccino/ctfchannels/pkg/log"
	"github.com/small-frappuccino/ctfchannels/pkg/naming"
)

// Client wraps a REST-only discordgo session authenticated as the bot.
type Client struct {
	session *discordgo.Session
}

// New creates a client for the given bot token. No gateway connection is opened.
func New(token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord bot token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewWithSession(s), nil
}

// NewWithSession wraps an existing session. The session's HTTP client gets a
// transport that records non-success answers so they can be reported verbatim.
func NewWithSession(s *discordgo.Session) *Client {
	s.Client = installCapture(s.Client)
	return &Client{session: s}
}

func requestOptions(ctx context.Context) []discordgo.RequestOption {
	if ctx == nil {
		ctx = context.Background()
	}
	return []discordgo.RequestOption{
		discordgo.WithContext(ctx),
		discordgo.WithRestRetries(0),
		discordgo.WithRetryOnRatelimit(false),
	}
}

// call runs one Discord request and logs its failure once. A non-success answer
// is returned as *UpstreamError; transport failures are returned as they are.
func (c *Client) call(ctx context.Context, operation string, attrs []any, fn func(opts ...discordgo.RequestOption) error) error {
	ctx, capture := withResponseCapture(ctx)
	return errutil.HandleDiscordError(operation, func() error {
		err := fn(requestOptions(ctx)...)
		if err == nil {
			return nil
		}
		if u := asUpstream(operation, err, capture); u != nil {
			return u
		}
		return err
	}, attrs...)
}

// FetchChannel returns the live channel, or nil when Discord cannot be reached or
// answers with a non-success status. Failures are logged, never returned.
func (c *Client) FetchChannel(ctx context.Context, channelID string) *discordgo.Channel {
	var ch *discordgo.Channel
	err := c.call(ctx, "fetch channel", []any{"channelID", channelID}, func(opts ...discordgo.RequestOption) error {
		var err error
		ch, err = c.session.Channel(channelID, opts...)
		return err
	})
	if err != nil {
		return nil
	}
	return ch
}

// RenameChannel sets the channel's name, clamped to Discord's length limit.
// It reports whether Discord accepted the change.
func (c *Client) RenameChannel(ctx context.Context, channelID, newName string) bool {
	if naming.Length(newName) > naming.MaxChannelNameLength {
		log.DiscordLogger().Warn("New channel name exceeds limit; truncating",
			"channelID", channelID,
			"length", naming.Length(newName),
			"max", naming.MaxChannelNameLength,
		)
		newName = naming.Clamp(newName, naming.MaxChannelNameLength)
	}

	err := c.call(ctx, "rename channel", []any{"channelID", channelID}, func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: newName}, opts...)
		return err
	})
	if err != nil {
		return false
	}

	log.DiscordLogger().Info("Updated channel name", "channelID", channelID, "name", newName)
	return true
}

// CreateChannel creates a channel of the given kind in guildID under parentID.
// Any non-success answer from Discord, rate limits included, is returned as
// *UpstreamError.
func (c *Client) CreateChannel(ctx context.Context, guildID, name string, kind discordgo.ChannelType, parentID string) (*discordgo.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     kind,
		ParentID: parentID,
	}

	var ch *discordgo.Channel
	err := c.call(ctx, "create channel", []any{"guildID", guildID, "name", name}, func(opts ...discordgo.RequestOption) error {
		var err error
		ch, err = c.session.GuildChannelCreateComplex(guildID, data, opts...)
		return err
	})
	if err != nil {
		var u *UpstreamError
		if errors.As(err, &u) {
			return nil, u
		}
		return nil, fmt.Errorf("create channel in guild %s: %w", guildID, err)
	}

	log.DiscordLogger().Info("Created channel", "guildID", guildID, "channelID", ch.ID, "name", ch.Name, "type", int(ch.Type))
	return ch, nil
}

// RegisterCommands replaces every global command of appID with cmds and returns
// Discord's answer verbatim.
func (c *Client) RegisterCommands(ctx context.Context, appID string, cmds []*discordgo.ApplicationCommand) ([]byte, error) {
	url := discordgo.EndpointApplicationGlobalCommands(appID)

	var body []byte
	err := c.call(ctx, "register commands", []any{"applicationID", appID}, func(opts ...discordgo.RequestOption) error {
		var err error
		body, err = c.session.RequestWithBucketID(http.MethodPut, url, cmds, url, opts...)
		return err
	})
	if err != nil {
		regErr := &RegistrationError{URL: url, Cause: err}
		var u *UpstreamError
		if errors.As(err, &u) {
			regErr.StatusCode = u.StatusCode
			regErr.Body = u.Body
		}
		return nil, regErr
	}

	var registered []json.RawMessage
	_ = json.Unmarshal(body, &registered)
	log.DiscordLogger().Info("Registered all commands", "applicationID", appID, "count", len(registered))
	return body, nil
}
