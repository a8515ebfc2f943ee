package kafka

import (
	"encoding/json"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/models"
)

// BookingEvents publishes the booking event streams. It satisfies the
// state machine's EventPublisher interface.
type BookingEvents struct {
	Producer *Producer
	Topics   config.TopicConfig
}

func NewBookingEvents(producer *Producer, topics config.TopicConfig) *BookingEvents {
	return &BookingEvents{Producer: producer, Topics: topics}
}

func (e *BookingEvents) PublishPaymentRecorded(entry models.PaymentLogEntry) error {
	payload, err := json.Marshal(models.PaymentEvent{
		Type:      "payment_recorded",
		BookingID: entry.BookingID,
		Entry:     &entry,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return e.Producer.Publish(e.Topics.PaymentRecorded, entry.BookingID, payload)
}

func (e *BookingEvents) PublishBookingConfirmed(b models.Booking) error {
	payload, err := json.Marshal(models.PaymentEvent{
		Type:      "booking_confirmed",
		BookingID: b.BookingID,
		Booking:   &b,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return e.Producer.Publish(e.Topics.BookingConfirmed, b.BookingID, payload)
}

func (e *BookingEvents) PublishPaymentFailed(bookingID, reason string) error {
	payload, err := json.Marshal(models.PaymentEvent{
		Type:      "payment_failed",
		BookingID: bookingID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return e.Producer.Publish(e.Topics.PaymentFailed, bookingID, payload)
}

// NoopEvents is used when Kafka is disabled; every publish succeeds
// silently.
type NoopEvents struct{}

func (NoopEvents) PublishPaymentRecorded(models.PaymentLogEntry) error { return nil }
func (NoopEvents) PublishBookingConfirmed(models.Booking) error        { return nil }
func (NoopEvents) PublishPaymentFailed(string, string) error           { return nil }
