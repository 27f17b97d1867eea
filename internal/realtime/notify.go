package realtime

import "fmt"

// Domain notification helpers. Each composes the fixed envelope for a domain
// occurrence and hands it to the dispatcher; delivery is best effort and
// callers never see a failure.

// NotifyEventCreated broadcasts a newly created event to all connected clients.
func (h *Hub) NotifyEventCreated(eventID int64, eventData interface{}) {
	h.Broadcast(NewEventCreated(eventID, eventData))
}

// NotifyEventUpdated broadcasts an event update.
func (h *Hub) NotifyEventUpdated(eventID int64, eventData interface{}) {
	h.Broadcast(NewEventUpdated(eventID, eventData))
}

// NotifyEventDeleted broadcasts an event deletion with the organizer's reason.
func (h *Hub) NotifyEventDeleted(eventID int64, reason string) {
	h.Broadcast(NewEventDeleted(eventID, reason))
}

// NotifyRegistrationCreated tells the organizer about a new registration and
// broadcasts the state change.
func (h *Hub) NotifyRegistrationCreated(organizerID string, registrationID, eventID int64, participantName string, registrationData interface{}) {
	h.SendToUser(organizerID, NewNotification("registration_created", "New registration",
		fmt.Sprintf("%s has registered", participantName),
		map[string]interface{}{"eventId": eventID, "registrationId": registrationID, "participantName": participantName}))
	h.Broadcast(NewRegistrationCreated(registrationID, eventID, registrationData))
}

// NotifyRegistrationUpdated broadcasts a registration update.
func (h *Hub) NotifyRegistrationUpdated(registrationID, eventID int64, registrationData interface{}) {
	h.Broadcast(NewRegistrationUpdated(registrationID, eventID, registrationData))
}

// NotifyRegistrationCancelled tells the organizer about a cancellation and
// broadcasts the state change.
func (h *Hub) NotifyRegistrationCancelled(organizerID string, registrationID, eventID int64, participantName, reason string) {
	h.SendToUser(organizerID, NewNotification("registration_cancelled", "Registration cancelled",
		fmt.Sprintf("%s has cancelled. Reason: %s", participantName, reason),
		map[string]interface{}{"eventId": eventID, "registrationId": registrationID}))
	h.Broadcast(NewRegistrationCancelled(registrationID, eventID, reason))
}

// NotifyCheckIn notifies the organizer and the checked-in guest, then
// broadcasts the check-in to all clients.
func (h *Hub) NotifyCheckIn(organizerID, guestID string, eventID int64, participantName string, checkInData interface{}) {
	h.SendToUser(organizerID, NewNotification("check_in", "New check-in",
		fmt.Sprintf("%s has checked in", participantName),
		map[string]interface{}{"eventId": eventID, "participantName": participantName}))
	h.SendToUser(guestID, NewNotification("check_in_success", "Check-in successful",
		"You have checked in successfully",
		map[string]interface{}{"eventId": eventID}))
	h.Broadcast(NewCheckInCreated(eventID, checkInData))
}

// NotifyNotificationCreated pushes a persisted notification to its recipient.
func (h *Hub) NotifyNotificationCreated(userID string, notificationData interface{}) {
	h.SendToUser(userID, NewNotificationCreated(notificationData))
}

// NotifyNotificationRead syncs a read marker to the user's other devices.
func (h *Hub) NotifyNotificationRead(userID string, notificationID int64) {
	h.SendToUser(userID, NewNotificationRead(notificationID))
}

// NotifyStatisticsUpdated pushes refreshed statistics to an organizer.
func (h *Hub) NotifyStatisticsUpdated(userID string, statistics interface{}) {
	h.SendToUser(userID, NewStatisticsUpdated(statistics))
}
