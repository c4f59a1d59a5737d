package server

import (
	"context"
	"encoding/json"
	"time"

	"lobby/internal/models"
	"lobby/internal/notifications"
	"lobby/internal/observability"
	"lobby/internal/service"

	"go.opentelemetry.io/otel/attribute"
)

// envelope is an inbound frame before its payload is decoded.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type privateChatPayload struct {
	Target string `json:"targetUsername"`
}

type editMessagePayload struct {
	MessageID int64  `json:"messageId"`
	NewText   string `json:"newText"`
}

type deleteMessagePayload struct {
	RoomID    string `json:"roomId"`
	MessageID int64  `json:"messageId"`
}

// adminActionPayload is the union of every admin command's fields.
type adminActionPayload struct {
	Action       string   `json:"action"`
	Target       string   `json:"target"`
	Duration     int64    `json:"duration"` // seconds
	Reason       string   `json:"reason"`
	RoomName     string   `json:"roomName"`
	Description  string   `json:"description"`
	AllowedUsers []string `json:"allowedUsers"`
	FirstName    *string  `json:"firstName"`
	LastName     *string  `json:"lastName"`
	Bio          *string  `json:"bio"`
	AvatarColor  *string  `json:"avatarColor"`
	RoomID       string   `json:"roomId"`
	MessageID    int64    `json:"messageId"`
}

func (p adminActionPayload) command() (service.AdminCommand, error) {
	switch p.Action {
	case "mute":
		return service.MuteCommand{Target: p.Target, Duration: time.Duration(p.Duration) * time.Second, Reason: p.Reason}, nil
	case "unmute":
		return service.UnmuteCommand{Target: p.Target}, nil
	case "ban":
		return service.BanCommand{Target: p.Target, Reason: p.Reason}, nil
	case "unban":
		return service.UnbanCommand{Target: p.Target}, nil
	case "create-private-room":
		return service.CreatePrivateRoomCommand{Name: p.RoomName, Description: p.Description, AllowedUsers: p.AllowedUsers}, nil
	case "update-profile":
		return service.UpdateProfileCommand{Target: p.Target, Delta: models.ProfileDelta{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Bio:         p.Bio,
			AvatarColor: p.AvatarColor,
		}}, nil
	case "delete-message":
		return service.DeleteMessageCommand{RoomID: p.RoomID, MessageID: p.MessageID}, nil
	default:
		return nil, models.NewValidationError("Unknown admin action: " + p.Action)
	}
}

type adminActionAck struct {
	Action string `json:"action"`
}

var inboundEvents = map[string]struct{}{
	models.EventRegister:           {},
	models.EventLogin:              {},
	models.EventJoinRoom:           {},
	models.EventSendMessage:        {},
	models.EventStartPrivateChat:   {},
	models.EventSendPrivateMessage: {},
	models.EventEditMessage:        {},
	models.EventDeleteMessage:      {},
	models.EventAdminAction:        {},
	models.EventUpdateProfile:      {},
	models.EventUpdateSettings:     {},
	models.EventTyping:             {},
	models.EventStopTyping:         {},
}

// failureEventType maps an inbound event to the event its errors are
// reported under.
func failureEventType(eventType string) string {
	switch eventType {
	case models.EventRegister:
		return models.EventRegistrationError
	case models.EventLogin:
		return models.EventLoginError
	default:
		return models.EventErrorMessage
	}
}

// dispatch decodes one inbound frame and hands it to the coordinator.
// Success events are delivered by the coordinator; failures are reported
// back to the sender only.
func (s *Server) dispatch(ctx context.Context, client *notifications.Client, message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
		s.reply(client, models.ErrorEvent(models.EventErrorMessage, models.NewValidationError("Malformed event")))
		return
	}
	label := env.Type
	if _, ok := inboundEvents[label]; !ok {
		label = "unknown"
	}
	observability.WebSocketEventsTotal.WithLabelValues(label).Inc()

	span, ctx := observability.StartEventSpan(ctx, label, client.ID)
	defer span.End()

	err := s.handleEvent(ctx, client, env)
	if err == nil {
		s.wsLogger.LogMessage(ctx, client.ID, env.Type)
		return
	}

	span.SetError(err)
	appErr := models.AsAppError(err)
	span.AddAttributes(attribute.String("error.code", appErr.Code))
	observability.EventErrorsTotal.WithLabelValues(label, appErr.Code).Inc()
	if appErr.Code == models.CodeInternal {
		s.wsLogger.LogError(ctx, client.ID, err, env.Type)
	}
	s.reply(client, models.ErrorEvent(failureEventType(env.Type), err))
}

func (s *Server) handleEvent(ctx context.Context, client *notifications.Client, env envelope) error {
	if !s.admission.Allow(ctx, client.ID, env.Type) {
		return models.NewPermissionError(models.CodeRateLimited, "Too many events, slow down")
	}

	c := s.coordinator
	connID := client.ID

	switch env.Type {
	case models.EventRegister:
		var in service.RegisterInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.Register(ctx, connID, in)
		return err

	case models.EventLogin:
		var in loginPayload
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.Login(ctx, connID, in.Username, in.Password)
		return err

	case models.EventJoinRoom:
		var in joinRoomPayload
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.JoinRoom(ctx, connID, in.RoomID)
		return err

	case models.EventSendMessage:
		var in models.MessageInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.SendRoomMessage(ctx, connID, in)
		return err

	case models.EventStartPrivateChat:
		var in privateChatPayload
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.StartPrivateChat(ctx, connID, in.Target)
		return err

	case models.EventSendPrivateMessage:
		var in models.MessageInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.SendPrivateMessage(ctx, connID, in)
		return err

	case models.EventEditMessage:
		var in editMessagePayload
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.EditMessage(ctx, connID, in.MessageID, in.NewText)
		return err

	case models.EventDeleteMessage:
		var in deleteMessagePayload
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return c.DeleteMessage(ctx, connID, in.RoomID, in.MessageID)

	case models.EventAdminAction:
		var in adminActionPayload
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		cmd, err := in.command()
		if err != nil {
			return err
		}
		if err := c.AdminAction(ctx, connID, cmd); err != nil {
			return err
		}
		s.reply(client, models.Event{Type: models.EventAdminActionSuccess, Payload: adminActionAck{Action: cmd.Action()}})
		return nil

	case models.EventUpdateProfile:
		var in models.ProfileDelta
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.UpdateProfile(ctx, connID, in)
		return err

	case models.EventUpdateSettings:
		var in models.PreferencesDelta
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		_, err := c.UpdateSettings(ctx, connID, in)
		return err

	case models.EventTyping:
		return c.Typing(ctx, connID)

	case models.EventStopTyping:
		return c.StopTyping(ctx, connID)

	default:
		return models.NewValidationError("Unknown event type: " + env.Type)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return models.NewValidationError("Invalid payload")
	}
	return nil
}

func (s *Server) reply(client *notifications.Client, event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		observability.GlobalLogger.Error("failed to marshal reply", "error", err.Error())
		return
	}
	client.TrySend(data)
}
