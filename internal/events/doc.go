// Package events carries notifications out of the assignment service.
//
// The service emits an Event whenever a subscriber receives new tasks or has
// completed tasks reconciled. Handlers registered on an EventEmitter decide
// where the notification goes; in production that is the RabbitMQ publisher.
// The service never fails an operation because a notification could not be
// delivered.
package events
