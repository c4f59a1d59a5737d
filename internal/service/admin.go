package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lobby/internal/models"
	"lobby/internal/observability"
)

// AdminCommand is one of the moderation commands accepted by AdminAction.
type AdminCommand interface {
	adminCommand()
	// Action names the command on the wire.
	Action() string
}

// MuteCommand silences Target for Duration. A zero Duration uses the
// configured default.
type MuteCommand struct {
	Target   string
	Duration time.Duration
	Reason   string
}

// UnmuteCommand lifts a mute early.
type UnmuteCommand struct {
	Target string
}

// BanCommand bans Target and disconnects its live session.
type BanCommand struct {
	Target string
	Reason string
}

// UnbanCommand lifts a ban.
type UnbanCommand struct {
	Target string
}

// CreatePrivateRoomCommand creates an invite-only room.
type CreatePrivateRoomCommand struct {
	Name         string
	Description  string
	AllowedUsers []string
}

// UpdateProfileCommand edits another user's profile.
type UpdateProfileCommand struct {
	Target string
	Delta  models.ProfileDelta
}

// DeleteMessageCommand removes a room message.
type DeleteMessageCommand struct {
	RoomID    string
	MessageID int64
}

func (MuteCommand) adminCommand()              {}
func (UnmuteCommand) adminCommand()            {}
func (BanCommand) adminCommand()               {}
func (UnbanCommand) adminCommand()             {}
func (CreatePrivateRoomCommand) adminCommand() {}
func (UpdateProfileCommand) adminCommand()     {}
func (DeleteMessageCommand) adminCommand()     {}

func (MuteCommand) Action() string              { return "mute" }
func (UnmuteCommand) Action() string            { return "unmute" }
func (BanCommand) Action() string               { return "ban" }
func (UnbanCommand) Action() string             { return "unban" }
func (CreatePrivateRoomCommand) Action() string { return "create-private-room" }
func (UpdateProfileCommand) Action() string     { return "update-profile" }
func (DeleteMessageCommand) Action() string     { return "delete-message" }

// AdminActionResult is delivered to the target of a moderation action.
type AdminActionResult struct {
	Action   string `json:"action"`
	Duration int64  `json:"duration,omitempty"` // seconds
	Reason   string `json:"reason,omitempty"`
	By       string `json:"by,omitempty"`
}

const defaultModerationReason = "Rule violation"

// AdminAction applies cmd on behalf of the admin bound to connID.
func (c *Coordinator) AdminAction(ctx context.Context, connID string, cmd AdminCommand) error {
	c.mu.Lock()
	after, err := c.adminActionLocked(ctx, connID, cmd)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if after != nil {
		if err := after(); err != nil {
			return err
		}
	}
	observability.ModerationActions.WithLabelValues(cmd.Action()).Inc()
	return nil
}

// adminActionLocked applies the in-memory part of cmd and returns any store
// work that must run once the lock is released.
func (c *Coordinator) adminActionLocked(ctx context.Context, connID string, cmd AdminCommand) (func() error, error) {
	s, err := c.sessionLocked(connID)
	if err != nil {
		return nil, err
	}
	if !s.IsAdmin() {
		return nil, models.NewPermissionError(models.CodeNotAdmin, "Admin privileges required")
	}

	switch cmd := cmd.(type) {
	case MuteCommand:
		target, err := c.moderationTarget(s, cmd.Target)
		if err != nil {
			return nil, err
		}
		if cmd.Duration < 0 {
			return nil, models.NewValidationError("Mute duration must be positive")
		}
		c.muteLocked(ctx, s.Username, target, cmd.Duration, cmd.Reason)
		return nil, nil

	case UnmuteCommand:
		target := strings.TrimSpace(cmd.Target)
		if _, ok := c.mod.Unmute(target); !ok {
			return nil, models.NewNotFoundError("Mute", target)
		}
		c.stopMuteTimerLocked(target)
		if t, ok := c.liveSessionLocked(target); ok {
			c.deliver(models.Event{
				Type:    models.EventAdminActionResult,
				Payload: AdminActionResult{Action: "unmuted", By: s.Username},
			}, t.ConnID)
		}
		c.broadcastPresenceLocked()
		c.logger.InfoContext(ctx, "user unmuted", slog.String("target", target), slog.String("by", s.Username))
		return nil, nil

	case BanCommand:
		target, err := c.moderationTarget(s, cmd.Target)
		if err != nil {
			return nil, err
		}
		c.banLocked(ctx, s.Username, target, cmd.Reason)
		return func() error {
			c.syncBan(ctx, target)
			return nil
		}, nil

	case UnbanCommand:
		target := strings.TrimSpace(cmd.Target)
		if !c.mod.Unban(target) {
			return nil, models.NewNotFoundError("Ban", target)
		}
		c.logger.InfoContext(ctx, "user unbanned", slog.String("target", target), slog.String("by", s.Username))
		return func() error {
			c.syncBan(ctx, target)
			return nil
		}, nil

	case CreatePrivateRoomCommand:
		room, err := c.createPrivateRoomLocked(s.Username, cmd)
		if err != nil {
			return nil, err
		}
		c.deliver(models.Event{Type: models.EventNewRoomCreated, Payload: c.roomSummaryLocked(room)}, c.allConnIDsLocked()...)
		c.logger.InfoContext(ctx, "private room created",
			slog.String("room", room.ID),
			slog.String("by", s.Username),
			slog.Any("allowed", room.Allowed()),
		)
		return nil, nil

	case UpdateProfileCommand:
		target := strings.TrimSpace(cmd.Target)
		if target == "" {
			return nil, models.NewValidationError("Target username is required")
		}
		by := s.Username
		return func() error {
			_, err := c.updateProfile(ctx, target, cmd.Delta, by)
			return err
		}, nil

	case DeleteMessageCommand:
		return nil, c.deleteMessageLocked(ctx, s, cmd.RoomID, cmd.MessageID)

	default:
		return nil, models.NewValidationError("Unknown admin action")
	}
}

func (c *Coordinator) moderationTarget(admin *Session, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", models.NewValidationError("Target username is required")
	}
	if target == admin.Username {
		return "", models.NewValidationError("Cannot moderate yourself")
	}
	return target, nil
}

func (c *Coordinator) muteLocked(ctx context.Context, by, target string, d time.Duration, reason string) {
	if d == 0 {
		d = c.opts.MuteDefault
	}
	if reason == "" {
		reason = defaultModerationReason
	}

	c.stopMuteTimerLocked(target)
	m := c.mod.Mute(target, by, d, reason, c.now())
	c.muteTimers[target] = c.schedule(d, func() { c.expireMute(target, m.Seq) })

	if t, ok := c.liveSessionLocked(target); ok {
		c.deliver(models.Event{
			Type: models.EventAdminActionResult,
			Payload: AdminActionResult{
				Action:   "muted",
				Duration: int64(d / time.Second),
				Reason:   reason,
				By:       by,
			},
		}, t.ConnID)
	}
	c.broadcastPresenceLocked()
	c.logger.InfoContext(ctx, "user muted",
		slog.String("target", target),
		slog.String("by", by),
		slog.Duration("duration", d),
	)
}

func (c *Coordinator) stopMuteTimerLocked(target string) {
	if stop, ok := c.muteTimers[target]; ok {
		stop()
		delete(c.muteTimers, target)
	}
}

// expireMute runs from the scheduler. It only lifts the mute identified by
// seq; a re-mute or manual unmute in between makes it a no-op.
func (c *Coordinator) expireMute(target string, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mod.Expire(target, seq) {
		return
	}
	delete(c.muteTimers, target)
	observability.ModerationActions.WithLabelValues("mute-expired").Inc()

	if t, ok := c.liveSessionLocked(target); ok {
		c.deliver(models.Event{
			Type:    models.EventAdminActionResult,
			Payload: AdminActionResult{Action: "unmuted", Reason: "expired"},
		}, t.ConnID)
	}
	c.broadcastPresenceLocked()
	c.logger.Info("mute expired", slog.String("target", target))
}

func (c *Coordinator) banLocked(ctx context.Context, by, target, reason string) {
	if reason == "" {
		reason = defaultModerationReason
	}
	c.mod.Ban(target, by, reason, c.now())

	if t, ok := c.liveSessionLocked(target); ok {
		c.deliver(models.Event{
			Type:    models.EventAdminActionResult,
			Payload: AdminActionResult{Action: "banned", Reason: reason, By: by},
		}, t.ConnID)
		if c.out != nil {
			c.out.Kick(t.ConnID, c.opts.BanKickDelay)
		}
	}
	c.logger.InfoContext(ctx, "user banned", slog.String("target", target), slog.String("by", by))
}

// syncBan writes target's current ban state to the store. Writes are
// serialized and read memory only once the previous write has returned, so
// the last write to land always matches the in-memory ban set.
func (c *Coordinator) syncBan(ctx context.Context, target string) {
	unlock := c.banWrites.Lock(target)
	defer unlock()

	c.mu.Lock()
	ban, banned := c.mod.BanOf(target)
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	if banned {
		if err := c.bans.Save(ctx, ban); err != nil {
			observability.LogAsyncOperationError(ctx, "ban_persist", err, map[string]interface{}{
				"target": target,
			})
		}
		return
	}
	if err := c.bans.Delete(ctx, target); err != nil {
		observability.LogAsyncOperationError(ctx, "ban_delete", err, map[string]interface{}{
			"target": target,
		})
	}
}
