package models

// Event is the JSON envelope exchanged over the websocket in both directions.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Inbound event types
const (
	EventRegister           = "register"
	EventLogin              = "login"
	EventJoinRoom           = "join-room"
	EventSendMessage        = "send-message"
	EventStartPrivateChat   = "start-private-chat"
	EventSendPrivateMessage = "send-private-message"
	EventEditMessage        = "edit-message"
	EventDeleteMessage      = "delete-message"
	EventAdminAction        = "admin-action"
	EventUpdateProfile      = "update-profile"
	EventUpdateSettings     = "update-settings"
	EventTyping             = "typing"
	EventStopTyping         = "stop-typing"
)

// Outbound event types
const (
	EventRegistered             = "registered"
	EventRegistrationError      = "registration-error"
	EventLoginError             = "login-error"
	EventRoomJoined             = "room-joined"
	EventSystemMessage          = "system-message"
	EventNewMessage             = "new-message"
	EventMention                = "mention"
	EventPrivateChatStarted     = "private-chat-started"
	EventPrivateChatNotice      = "private-chat-notification"
	EventPrivateMessageSent     = "private-message-sent"
	EventNewPrivateMessage      = "new-private-message"
	EventMessageEdited          = "message-edited"
	EventMessageDeleted         = "message-deleted"
	EventAdminActionResult      = "admin-action-result"
	EventNewRoomCreated         = "new-room-created"
	EventProfileUpdated         = "profile-updated"
	EventSettingsUpdated        = "settings-updated"
	EventThemeChanged           = "theme-changed"
	EventUserTyping             = "user-typing"
	EventUserStopTyping         = "user-stop-typing"
	EventUserList               = "user-list"
	EventRoomUsers              = "room-users"
	EventErrorMessage           = "error-message"
	EventMessagesDropped        = "messages_dropped"
	EventAdminActionSuccess     = "admin-action-success"
)

// SystemMessage is a room notice produced by the coordinator.
type SystemMessage struct {
	Text      string `json:"text"`
	RoomID    string `json:"roomId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorPayload is the body of every failure event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEvent converts err into a failure event of the given type.
func ErrorEvent(eventType string, err error) Event {
	appErr := AsAppError(err)
	return Event{
		Type:    eventType,
		Payload: ErrorPayload{Code: appErr.Code, Message: appErr.Message},
	}
}
