package commands

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/ctfchannels/pkg/discord/platform"
)

func TestAddChallenge(t *testing.T) {
	t.Parallel()

	fake := &fakeChannels{created: &discordgo.Channel{ID: "new-1", Name: "❓-pending-sql-injection"}}
	d := NewDispatcher(fake, nil)

	resp := mustDispatch(t, d, commandPayload(t, AddChallengeName, map[string]string{"name": "SQL Injection"}))
	if isEphemeral(resp) {
		t.Fatalf("success reply must be public: %+v", resp.Data)
	}
	if resp.Data.Content != "✅ New Challenge Found!!! \n<#new-1>" {
		t.Fatalf("unexpected reply %q", resp.Data.Content)
	}

	if len(fake.creates) != 1 {
		t.Fatalf("expected one create call, got %d", len(fake.creates))
	}
	got := fake.creates[0]
	want := createCall{GuildID: "guild-1", Name: "❓-pending-sql-injection", Kind: discordgo.ChannelTypeGuildText, ParentID: "cat-9"}
	if got != want {
		t.Fatalf("unexpected create call:\n got %+v\nwant %+v", got, want)
	}
	if len(fake.fetches) != 0 || len(fake.renames) != 0 {
		t.Fatal("addchal must only create")
	}
}

func TestAddVoiceChannel(t *testing.T) {
	t.Parallel()

	fake := &fakeChannels{created: &discordgo.Channel{ID: "v-1"}}
	d := NewDispatcher(fake, nil)

	resp := mustDispatch(t, d, commandPayload(t, AddVoiceChannelName, map[string]string{"name": "War Room"}))
	if resp.Data.Content != "✅ New Voice Channel Found!!! \n<#v-1>" {
		t.Fatalf("unexpected reply %q", resp.Data.Content)
	}
	want := createCall{GuildID: "guild-1", Name: "war-room", Kind: discordgo.ChannelTypeGuildVoice, ParentID: "cat-9"}
	if len(fake.creates) != 1 || fake.creates[0] != want {
		t.Fatalf("unexpected create calls: %+v", fake.creates)
	}
}

func TestCreateCommandsMissingName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{AddChallengeName, AddVoiceChannelName} {
		for _, arg := range []map[string]string{nil, {"name": ""}} {
			fake := &fakeChannels{}
			d := NewDispatcher(fake, nil)
			resp := mustDispatch(t, d, commandPayload(t, name, arg))
			if !isEphemeral(resp) || !strings.Contains(resp.Data.Content, "name is required when performing "+name) {
				t.Fatalf("%s: unexpected reply %+v", name, resp.Data)
			}
			if fake.totalCalls() != 0 {
				t.Fatalf("%s: missing name must not call Discord", name)
			}
		}
	}
}

func TestCreateCommandUpstreamError(t *testing.T) {
	t.Parallel()

	body := `{"message":"Missing Permissions","code":50013}`
	fake := &fakeChannels{createErr: &platform.UpstreamError{Operation: "create channel", StatusCode: 403, Body: body, Code: 50013}}
	d := NewDispatcher(fake, nil)

	resp := mustDispatch(t, d, commandPayload(t, AddChallengeName, map[string]string{"name": "pwn"}))
	if !isEphemeral(resp) {
		t.Fatalf("upstream failure must be ephemeral: %+v", resp.Data)
	}
	want := "create channel error (403): " + body
	if resp.Data.Content != want {
		t.Fatalf("unexpected reply:\n got %q\nwant %q", resp.Data.Content, want)
	}
}

func TestCreateCommandRateLimitAndBadGateway(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		body   string
	}{
		{status: 429, body: `{"message":"You are being rate limited.","retry_after":1.5,"global":false}`},
		{status: 502, body: `{"message":"upstream unavailable"}`},
	}

	for _, tt := range tests {
		fake := &fakeChannels{createErr: &platform.UpstreamError{Operation: "create channel", StatusCode: tt.status, Body: tt.body}}
		audit := &fakeAudit{}
		d := NewDispatcher(fake, audit)

		resp := mustDispatch(t, d, commandPayload(t, AddChallengeName, map[string]string{"name": "pwn"}))
		want := fmt.Sprintf("create channel error (%d): %s", tt.status, tt.body)
		if !isEphemeral(resp) || resp.Data.Content != want {
			t.Fatalf("status %d: unexpected reply %+v", tt.status, resp.Data)
		}
		if len(audit.records) != 1 || audit.records[0].Outcome != string(OutcomeUpstream) {
			t.Fatalf("status %d: unexpected audit %+v", tt.status, audit.records)
		}
	}
}

func TestCreateCommandMissingPermissionsDetail(t *testing.T) {
	t.Parallel()

	fake := &fakeChannels{createErr: &platform.UpstreamError{Operation: "create channel", StatusCode: 403, Body: `{"code":50013}`, Code: 50013}}
	audit := &fakeAudit{}
	mustDispatch(t, NewDispatcher(fake, audit), commandPayload(t, AddChallengeName, map[string]string{"name": "pwn"}))

	if len(audit.records) != 1 || !strings.Contains(audit.records[0].Detail, "lacks Manage Channels") {
		t.Fatalf("unexpected audit %+v", audit.records)
	}
}

func TestCreateCommandInternalError(t *testing.T) {
	t.Parallel()

	fake := &fakeChannels{createErr: errors.New("dial tcp: connection refused")}
	d := NewDispatcher(fake, nil)

	resp := mustDispatch(t, d, commandPayload(t, AddVoiceChannelName, map[string]string{"name": "lobby"}))
	if !isEphemeral(resp) || resp.Data.Content != "create channel internal error" {
		t.Fatalf("unexpected reply %+v", resp.Data)
	}
}

func TestMarkCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		command     string
		current     string
		wantRename  string
		wantContent string
		renameOK    bool
		ephemeral   bool
	}{
		{name: "solve pending", command: MarkSolvedName, current: "❓-pending-foo", wantRename: "✅-solved-foo", renameOK: true, wantContent: "✅ Channel marked as solved."},
		{name: "solve unmarked", command: MarkSolvedName, current: "foo", wantRename: "✅-solved-foo", renameOK: true, wantContent: "✅ Channel marked as solved."},
		{name: "unsolve solved", command: MarkUnsolvedName, current: "✅-solved-foo", wantRename: "❓-pending-foo", renameOK: true, wantContent: "✅ Channel marked as unsolved."},
		{name: "already solved", command: MarkSolvedName, current: "✅-solved-foo", wantContent: "ℹ️ This channel is already marked as solved.", ephemeral: true},
		{name: "already pending", command: MarkUnsolvedName, current: "❓-pending-foo", wantContent: "ℹ️ This channel is already marked as unsolved.", ephemeral: true},
		{name: "empty name falls back", command: MarkSolvedName, current: "", wantRename: "✅-solved-channel", renameOK: true, wantContent: "✅ Channel marked as solved."},
		{name: "rename fails", command: MarkUnsolvedName, current: "foo", wantRename: "❓-pending-foo", wantContent: msgRenameFailed, ephemeral: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeChannels{channel: textChannel(tt.current), renameOK: tt.renameOK}
			d := NewDispatcher(fake, nil)

			resp := mustDispatch(t, d, commandPayload(t, tt.command, nil))
			if resp.Data.Content != tt.wantContent {
				t.Fatalf("unexpected reply %q", resp.Data.Content)
			}
			if isEphemeral(resp) != tt.ephemeral {
				t.Fatalf("ephemeral = %t, want %t", isEphemeral(resp), tt.ephemeral)
			}
			if len(fake.fetches) != 1 || fake.fetches[0] != "chan-1" {
				t.Fatalf("expected one fetch of chan-1, got %+v", fake.fetches)
			}
			if tt.wantRename == "" {
				if len(fake.renames) != 0 {
					t.Fatalf("expected no PATCH, got %+v", fake.renames)
				}
				return
			}
			if len(fake.renames) != 1 || fake.renames[0] != (renameCall{ChannelID: "chan-1", Name: tt.wantRename}) {
				t.Fatalf("unexpected renames: %+v", fake.renames)
			}
		})
	}
}

func TestChannelCommandsFetchFailureAndWrongType(t *testing.T) {
	t.Parallel()

	voice := &discordgo.Channel{ID: "chan-1", Name: "lobby", Type: discordgo.ChannelTypeGuildVoice}
	commands := []struct {
		name string
		args map[string]string
	}{
		{name: MarkSolvedName},
		{name: MarkUnsolvedName},
		{name: RenameChallengeName, args: map[string]string{"newname": "bar"}},
	}

	for _, cmd := range commands {
		fake := &fakeChannels{}
		resp := mustDispatch(t, NewDispatcher(fake, nil), commandPayload(t, cmd.name, cmd.args))
		if !isEphemeral(resp) || resp.Data.Content != msgCannotFetch {
			t.Fatalf("%s: unexpected reply on fetch failure: %+v", cmd.name, resp.Data)
		}
		if len(fake.renames) != 0 {
			t.Fatalf("%s: PATCH after failed fetch", cmd.name)
		}

		fake = &fakeChannels{channel: voice}
		resp = mustDispatch(t, NewDispatcher(fake, nil), commandPayload(t, cmd.name, cmd.args))
		if !isEphemeral(resp) || resp.Data.Content != msgTextOnly {
			t.Fatalf("%s: unexpected reply on voice channel: %+v", cmd.name, resp.Data)
		}
		if len(fake.renames) != 0 {
			t.Fatalf("%s: PATCH on a non-text channel", cmd.name)
		}
	}
}

func TestRenameChallenge(t *testing.T) {
	t.Parallel()

	fake := &fakeChannels{channel: textChannel("❓-pending-foo"), renameOK: true}
	d := NewDispatcher(fake, nil)

	resp := mustDispatch(t, d, commandPayload(t, RenameChallengeName, map[string]string{"newname": "bar baz"}))
	if isEphemeral(resp) {
		t.Fatalf("success reply must be public: %+v", resp.Data)
	}
	if resp.Data.Content != "✅ Channel <#chan-1> renamed to `bar-baz` (marker kept)." {
		t.Fatalf("unexpected reply %q", resp.Data.Content)
	}
	if len(fake.renames) != 1 || fake.renames[0] != (renameCall{ChannelID: "chan-1", Name: "❓-pending-bar-baz"}) {
		t.Fatalf("unexpected renames: %+v", fake.renames)
	}
}

func TestRenameChallengeReplacesOnlyFirstSpace(t *testing.T) {
	t.Parallel()

	fake := &fakeChannels{channel: textChannel("old"), renameOK: true}
	d := NewDispatcher(fake, nil)

	resp := mustDispatch(t, d, commandPayload(t, RenameChallengeName, map[string]string{"newname": "One Two Three"}))
	if resp.Data.Content != "✅ Channel <#chan-1> renamed to `one-two three`." {
		t.Fatalf("unexpected reply %q", resp.Data.Content)
	}
	if fake.renames[0].Name != "one-two three" {
		t.Fatalf("unexpected rename %q", fake.renames[0].Name)
	}
}

func TestRenameChallengeFailures(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 96)

	tests := []struct {
		name        string
		current     string
		newName     string
		renameOK    bool
		wantContent string
		wantFetch   bool
		wantRename  bool
	}{
		{name: "missing newname", current: "foo", newName: "", wantContent: "❌ Please provide a valid new channel name."},
		{name: "unchanged with marker", current: "✅-solved-bar", newName: "Bar", wantFetch: true, wantContent: "ℹ️ The channel is already named `bar` (with marker)."},
		{name: "unchanged without marker", current: "bar", newName: "bar", wantFetch: true, wantContent: "ℹ️ The channel is already named `bar`."},
		{
			name:        "too long with marker",
			current:     "✅-solved-foo",
			newName:     long,
			wantFetch:   true,
			wantContent: "❌ Sorry, the new channel name (including marker \"✅-solved-\") is too long (105/100 characters). Please shorten it.",
		},
		{
			name:        "rename failure",
			current:     "foo",
			newName:     "bar",
			wantFetch:   true,
			wantRename:  true,
			wantContent: "❌ Failed to rename the channel. Check that the bot has the `Manage Channels` permission or try again later.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeChannels{channel: textChannel(tt.current), renameOK: tt.renameOK}
			d := NewDispatcher(fake, nil)

			resp := mustDispatch(t, d, commandPayload(t, RenameChallengeName, map[string]string{"newname": tt.newName}))
			if !isEphemeral(resp) {
				t.Fatalf("failure reply must be ephemeral: %+v", resp.Data)
			}
			if resp.Data.Content != tt.wantContent {
				t.Fatalf("unexpected reply:\n got %q\nwant %q", resp.Data.Content, tt.wantContent)
			}
			if (len(fake.fetches) == 1) != tt.wantFetch {
				t.Fatalf("fetches = %d, wantFetch %t", len(fake.fetches), tt.wantFetch)
			}
			if (len(fake.renames) == 1) != tt.wantRename {
				t.Fatalf("renames = %d, wantRename %t", len(fake.renames), tt.wantRename)
			}
		})
	}
}
