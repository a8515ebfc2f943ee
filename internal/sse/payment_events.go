package sse

import (
	"context"
	"sync"

	"ms-booking/internal/models"
)

// PaymentEventEmitter manages SSE connections and event broadcasting for
// payment events
type PaymentEventEmitter struct {
	// Booking channel clients map - key: bookingID, value: slice of client channels
	bookingClients     map[string][]chan models.PaymentEvent
	bookingClientMutex sync.RWMutex

	// Vendor channel clients map - key: vendorID, value: slice of client channels
	vendorClients     map[string][]chan models.PaymentEvent
	vendorClientMutex sync.RWMutex
}

// NewPaymentEventEmitter creates a new SSE event emitter for payment events
func NewPaymentEventEmitter() *PaymentEventEmitter {
	return &PaymentEventEmitter{
		bookingClients: make(map[string][]chan models.PaymentEvent),
		vendorClients:  make(map[string][]chan models.PaymentEvent),
	}
}

// SubscribeToBooking adds a client to a single booking's payment events
func (e *PaymentEventEmitter) SubscribeToBooking(ctx context.Context, bookingID string) chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.bookingClientMutex.Lock()
	e.bookingClients[bookingID] = append(e.bookingClients[bookingID], clientChan)
	e.bookingClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeBookingClient(bookingID, clientChan)
	}()

	return clientChan
}

// SubscribeToVendor adds a client to a vendor's payment events across all
// of their bookings
func (e *PaymentEventEmitter) SubscribeToVendor(ctx context.Context, vendorID string) chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.vendorClientMutex.Lock()
	e.vendorClients[vendorID] = append(e.vendorClients[vendorID], clientChan)
	e.vendorClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeVendorClient(vendorID, clientChan)
	}()

	return clientChan
}

// EmitPaymentEvent broadcasts a payment event to all subscribed clients
func (e *PaymentEventEmitter) EmitPaymentEvent(vendorID string, event models.PaymentEvent) {
	e.bookingClientMutex.RLock()
	clients := e.bookingClients[event.BookingID]
	e.bookingClientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send to avoid slowing down emitter if client is slow
		select {
		case clientChan <- event:
		default:
			// Channel buffer full, skip this client for now
		}
	}

	e.vendorClientMutex.RLock()
	vendorChans := e.vendorClients[vendorID]
	e.vendorClientMutex.RUnlock()

	for _, clientChan := range vendorChans {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *PaymentEventEmitter) removeBookingClient(bookingID string, clientChan chan models.PaymentEvent) {
	e.bookingClientMutex.Lock()
	defer e.bookingClientMutex.Unlock()

	clients := e.bookingClients[bookingID]
	for i, ch := range clients {
		if ch == clientChan {
			e.bookingClients[bookingID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.bookingClients[bookingID]) == 0 {
		delete(e.bookingClients, bookingID)
	}
}

func (e *PaymentEventEmitter) removeVendorClient(vendorID string, clientChan chan models.PaymentEvent) {
	e.vendorClientMutex.Lock()
	defer e.vendorClientMutex.Unlock()

	clients := e.vendorClients[vendorID]
	for i, ch := range clients {
		if ch == clientChan {
			e.vendorClients[vendorID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.vendorClients[vendorID]) == 0 {
		delete(e.vendorClients, vendorID)
	}
}

// GetBookingClientCount returns the number of clients currently subscribed
// to a booking
func (e *PaymentEventEmitter) GetBookingClientCount(bookingID string) int {
	e.bookingClientMutex.RLock()
	defer e.bookingClientMutex.RUnlock()
	return len(e.bookingClients[bookingID])
}

// GetVendorClientCount returns the number of clients currently subscribed
// to a vendor
func (e *PaymentEventEmitter) GetVendorClientCount(vendorID string) int {
	e.vendorClientMutex.RLock()
	defer e.vendorClientMutex.RUnlock()
	return len(e.vendorClients[vendorID])
}
