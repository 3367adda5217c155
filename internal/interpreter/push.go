package interpreter

import (
	"encoding/json"
	"fmt"

	"github.com/moolen/gameterm/internal/commands"
)

// Events the remote service pushes without a request.
const (
	EventMessage    = "message"
	EventPolicy     = "policy"
	EventCandidates = "candidates"
	EventUser       = "user"
)

// MessagePush carries lines to show.
type MessagePush struct {
	Lines    []string `json:"lines"`
	Markdown bool     `json:"markdown"`
}

// PolicyPush changes the policy fields of one command.
type PolicyPush struct {
	Name        string  `json:"name"`
	AccessLevel *int    `json:"access_level"`
	Visibility  *int    `json:"visibility"`
	Category    *string `json:"category"`
}

// CandidatesPush replaces a completion source.
type CandidatesPush struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// UserPush updates the current user.
type UserPush struct {
	Name        string `json:"name"`
	AccessLevel *int   `json:"access_level"`
}

// ApplyPatch updates a command's policy on the event loop.
func (i *Interpreter) ApplyPatch(name string, patch commands.Patch) {
	i.post(funcMsg(func() { i.applyPatch(name, patch) }))
}

func (i *Interpreter) handlePush(event string, payload json.RawMessage) {
	var err error
	switch event {
	case EventMessage:
		var m MessagePush
		if err = decode(payload, &m); err == nil {
			i.cfg.Output.Enqueue(m.Lines, commands.OutputOptions{Markdown: m.Markdown})
		}
	case EventPolicy:
		var p PolicyPush
		if err = decode(payload, &p); err == nil {
			i.applyPatch(p.Name, commands.Patch{
				AccessLevel: p.AccessLevel,
				Visibility:  p.Visibility,
				Category:    p.Category,
			})
		}
	case EventCandidates:
		var c CandidatesPush
		if err = decode(payload, &c); err == nil {
			i.cfg.Completer.SetSource(c.Type, c.Values)
		}
	case EventUser:
		var u UserPush
		if err = decode(payload, &u); err == nil {
			i.updateUser(u)
		}
	default:
		i.logger.Debug("ignoring push event %q", event)
		return
	}
	if err != nil {
		i.logger.Warn("Malformed %q push: %v", event, err)
	}
}

func (i *Interpreter) applyPatch(name string, patch commands.Patch) {
	if !i.cfg.Registry.ApplyPatch(name, patch) {
		i.logger.Debug("policy update for unknown command %q", name)
		return
	}
	i.logger.Info("Policy updated for command %q", name)
}

func (i *Interpreter) updateUser(u UserPush) {
	user := i.User()
	if u.Name != "" {
		user.Name = u.Name
	}
	if u.AccessLevel != nil {
		user.AccessLevel = *u.AccessLevel
	}
	i.setUser(user)
	i.logger.Info("User is now %q (level %d)", user.Name, user.AccessLevel)
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(payload, v)
}
