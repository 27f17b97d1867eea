package realtime

import "time"

// Envelope types sent over the hub. Every server-to-client frame except the
// ping reply uses this shape.
const (
	TypeConnected             = "connected"
	TypePong                  = "pong"
	TypeNotification          = "notification"
	TypeEventCreated          = "event_created"
	TypeEventUpdated          = "event_updated"
	TypeEventDeleted          = "event_deleted"
	TypeRegistrationCreated   = "registration_created"
	TypeRegistrationUpdated   = "registration_updated"
	TypeRegistrationCancelled = "registration_cancelled"
	TypeCheckInCreated        = "check_in_created"
	TypeNotificationCreated   = "notification_created"
	TypeNotificationRead      = "notification_read"
	TypeStatisticsUpdated     = "statistics_updated"
)

// Envelope actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Envelope is the structured message shape delivered to clients:
// a type, an optional CRUD action, the affected entity id, an arbitrary
// payload and the server timestamp.
type Envelope struct {
	Type             string      `json:"type"`
	Action           string      `json:"action,omitempty"`
	EventID          int64       `json:"eventId,omitempty"`
	RegistrationID   int64       `json:"registrationId,omitempty"`
	NotificationID   int64       `json:"notificationId,omitempty"`
	UserID           string      `json:"userId,omitempty"`
	NotificationType string      `json:"notificationType,omitempty"`
	Title            string      `json:"title,omitempty"`
	Body             string      `json:"body,omitempty"`
	Message          string      `json:"message,omitempty"`
	Reason           string      `json:"reason,omitempty"`
	Data             interface{} `json:"data,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

// NewConnected is the acknowledgement sent to a freshly added connection.
func NewConnected(userID string) Envelope {
	return Envelope{
		Type:      TypeConnected,
		Message:   "websocket connection established",
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewPong answers a client "ping" text frame.
func NewPong() Envelope {
	return Envelope{Type: TypePong, Timestamp: time.Now()}
}

// NewNotification builds a user-facing notification message.
func NewNotification(notificationType, title, body string, data interface{}) Envelope {
	return Envelope{
		Type:             TypeNotification,
		NotificationType: notificationType,
		Title:            title,
		Body:             body,
		Data:             data,
		Timestamp:        time.Now(),
	}
}

// NewEventCreated announces a newly created event.
func NewEventCreated(eventID int64, data interface{}) Envelope {
	return Envelope{Type: TypeEventCreated, Action: ActionCreate, EventID: eventID, Data: data, Timestamp: time.Now()}
}

// NewEventUpdated announces an updated event.
func NewEventUpdated(eventID int64, data interface{}) Envelope {
	return Envelope{Type: TypeEventUpdated, Action: ActionUpdate, EventID: eventID, Data: data, Timestamp: time.Now()}
}

// NewEventDeleted announces a deleted event with the organizer's reason.
func NewEventDeleted(eventID int64, reason string) Envelope {
	return Envelope{Type: TypeEventDeleted, Action: ActionDelete, EventID: eventID, Reason: reason, Timestamp: time.Now()}
}

// NewRegistrationCreated announces a new registration.
func NewRegistrationCreated(registrationID, eventID int64, data interface{}) Envelope {
	return Envelope{Type: TypeRegistrationCreated, Action: ActionCreate, RegistrationID: registrationID, EventID: eventID, Data: data, Timestamp: time.Now()}
}

// NewRegistrationUpdated announces an updated registration.
func NewRegistrationUpdated(registrationID, eventID int64, data interface{}) Envelope {
	return Envelope{Type: TypeRegistrationUpdated, Action: ActionUpdate, RegistrationID: registrationID, EventID: eventID, Data: data, Timestamp: time.Now()}
}

// NewRegistrationCancelled announces a cancelled registration.
func NewRegistrationCancelled(registrationID, eventID int64, reason string) Envelope {
	return Envelope{Type: TypeRegistrationCancelled, Action: ActionDelete, RegistrationID: registrationID, EventID: eventID, Reason: reason, Timestamp: time.Now()}
}

// NewCheckInCreated announces a successful check-in.
func NewCheckInCreated(eventID int64, data interface{}) Envelope {
	return Envelope{Type: TypeCheckInCreated, Action: ActionCreate, EventID: eventID, Data: data, Timestamp: time.Now()}
}

// NewNotificationCreated delivers a freshly persisted notification row.
func NewNotificationCreated(data interface{}) Envelope {
	return Envelope{Type: TypeNotificationCreated, Action: ActionCreate, Data: data, Timestamp: time.Now()}
}

// NewNotificationRead tells the user's other devices a notification was read.
func NewNotificationRead(notificationID int64) Envelope {
	return Envelope{Type: TypeNotificationRead, Action: ActionUpdate, NotificationID: notificationID, Timestamp: time.Now()}
}

// NewStatisticsUpdated pushes refreshed event statistics to an organizer.
func NewStatisticsUpdated(data interface{}) Envelope {
	return Envelope{Type: TypeStatisticsUpdated, Action: ActionUpdate, Data: data, Timestamp: time.Now()}
}
