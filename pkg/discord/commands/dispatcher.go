// Package commands implements the slash commands that manage challenge
// channels and the dispatcher that routes a verified interaction to them.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/ctfchannels/pkg/discord/interactions"
	"github.com/small-frappuccino/ctfchannels/pkg/log"
	"github.com/small-frappuccino/ctfchannels/pkg/storage"
)

var (
	// ErrUnknownCommand is returned for a command name no handler is registered for.
	// Unlike every other validation failure it is answered with HTTP 400 rather than
	// an ephemeral reply.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownInteraction is returned for interaction types other than ping and
	// application command.
	ErrUnknownInteraction = errors.New("unknown interaction type")
)

const notAvailableHere = "Command not available here."

// ChannelService is the subset of the Discord API the commands use.
type ChannelService interface {
	FetchChannel(ctx context.Context, channelID string) *discordgo.Channel
	RenameChannel(ctx context.Context, channelID, newName string) bool
	CreateChannel(ctx context.Context, guildID, name string, kind discordgo.ChannelType, parentID string) (*discordgo.Channel, error)
}

// AuditRecorder receives one record per dispatched command.
type AuditRecorder interface {
	RecordCommand(ctx context.Context, rec storage.AuditRecord) error
}

// Invocation carries the request-scoped inputs of a command handler.
type Invocation struct {
	Command   string
	GuildID   string
	ChannelID string
	ParentID  string
	Logger    *slog.Logger

	payload *interactions.Payload
}

// StringOption returns a string argument of the invocation.
func (inv *Invocation) StringOption(name string) (string, bool) {
	if inv.payload == nil {
		return "", false
	}
	return inv.payload.StringOption(name)
}

// HandlerFunc handles one command. It must always return a response.
type HandlerFunc func(ctx context.Context, channels ChannelService, inv *Invocation) Reply

// Dispatcher routes interactions to command handlers.
type Dispatcher struct {
	channels ChannelService
	audit    AuditRecorder
	handlers map[string]HandlerFunc
	now      func() time.Time
}

// NewDispatcher builds a dispatcher with the five challenge commands registered.
// audit may be nil.
func NewDispatcher(channels ChannelService, audit AuditRecorder) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		audit:    audit,
		handlers: make(map[string]HandlerFunc),
		now:      time.Now,
	}
	d.Handle(AddChallengeName, handleAddChallenge)
	d.Handle(MarkSolvedName, markHandler(markSolved))
	d.Handle(MarkUnsolvedName, markHandler(markUnsolved))
	d.Handle(RenameChallengeName, handleRenameChallenge)
	d.Handle(AddVoiceChannelName, handleAddVoiceChannel)
	return d
}

// Handle registers h for the command name, compared case-insensitively.
func (d *Dispatcher) Handle(name string, h HandlerFunc) {
	d.handlers[strings.ToLower(name)] = h
}

// Dispatch answers one verified interaction. A non-nil error means the request is
// malformed at the protocol level (ErrUnknownInteraction, ErrUnknownCommand) and
// no response was produced.
func (d *Dispatcher) Dispatch(ctx context.Context, p *interactions.Payload) (*discordgo.InteractionResponse, error) {
	if p == nil || p.Interaction == nil {
		return nil, ErrUnknownInteraction
	}
	if p.IsPing() {
		return Pong(), nil
	}

	logger := log.ApplicationLogger().With("guildID", p.GuildID, "channelID", p.ChannelID)
	if p.GuildID == "" {
		logger.Warn("Interaction received outside of a guild", "type", p.Type.String())
		return Ephemeral(notAvailableHere), nil
	}
	if !p.IsCommand() {
		logger.Warn("Unsupported interaction type", "type", p.Type.String())
		return nil, fmt.Errorf("%w: %s", ErrUnknownInteraction, p.Type.String())
	}

	name := p.CommandName()
	h, ok := d.handlers[strings.ToLower(name)]
	if !ok {
		logger.Warn("Command not found", "command", name)
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	inv := &Invocation{
		Command:   strings.ToLower(name),
		GuildID:   p.GuildID,
		ChannelID: p.ChannelID,
		ParentID:  p.ParentID,
		Logger:    logger.With("command", strings.ToLower(name)),
		payload:   p,
	}

	reply := d.run(ctx, h, inv)
	d.record(ctx, inv, reply)
	return reply.Response, nil
}

func (d *Dispatcher) run(ctx context.Context, h HandlerFunc, inv *Invocation) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			inv.Logger.Error("Command handler panicked", "panic", fmt.Sprint(r))
			reply = failure(OutcomeInternal, "❌ Internal error while running the command.", fmt.Sprint(r))
		}
	}()

	inv.Logger.Debug("Executing command")
	reply = h(ctx, d.channels, inv)
	if reply.Response == nil {
		reply = failure(OutcomeInternal, "❌ Internal error while running the command.", "handler returned no response")
	}
	return reply
}

func (d *Dispatcher) record(ctx context.Context, inv *Invocation, reply Reply) {
	attrs := []any{"outcome", string(reply.Outcome)}
	if reply.Detail != "" {
		attrs = append(attrs, "detail", reply.Detail)
	}
	if reply.Outcome == OutcomeSuccess || reply.Outcome == OutcomeNoop {
		inv.Logger.Info("Command handled", attrs...)
	} else {
		inv.Logger.Warn("Command failed", attrs...)
	}

	if d.audit == nil {
		return
	}
	rec := storage.AuditRecord{
		At:        d.now(),
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		Command:   inv.Command,
		Outcome:   string(reply.Outcome),
		Detail:    reply.Detail,
	}
	if err := d.audit.RecordCommand(ctx, rec); err != nil {
		log.ErrorLoggerRaw().Error("Failed to record command audit", "command", inv.Command, "err", err)
	}
}
