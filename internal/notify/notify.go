// Package notify delivers pickup reminders and expiry notices to customer
// devices.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
)

// ErrUnregistered means the device token is no longer valid and retrying
// will not help.
var ErrUnregistered = errors.New("device token unregistered")

// Message is one push notification. All Data values are strings because the
// push gateway only carries string maps.
type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// Sender delivers a single message to one device.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ReminderMessage builds the "pick it up soon" notice sent while an order waits.
func ReminderMessage(token, orderID string, minutesLeft int) Message {
	return Message{
		Token: token,
		Title: fmt.Sprintf("Order %s Pickup Reminder", orderID),
		Body:  fmt.Sprintf("Your food will expire in %d minutes. Please pick it up soon!", minutesLeft),
		Data: map[string]string{
			"order_id":     orderID,
			"minutes_left": strconv.Itoa(minutesLeft),
			"expired":      "false",
		},
	}
}

// ExpiredMessage builds the final notice sent when an order expires unclaimed.
func ExpiredMessage(token, orderID string) Message {
	return Message{
		Token: token,
		Title: fmt.Sprintf("Order %s Expired", orderID),
		Body:  "Your order was not picked up in time and has expired.",
		Data: map[string]string{
			"order_id":     orderID,
			"minutes_left": "0",
			"expired":      "true",
		},
	}
}

// LogSender writes messages to the log instead of delivering them. Used when
// no push endpoint is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("notify: to=%s title=%q data=%v", MaskToken(msg.Token), msg.Title, msg.Data)
	return nil
}

// MaskToken shortens a device token for log lines.
func MaskToken(token string) string {
	const keep = 6
	if len(token) <= keep {
		return "***"
	}
	return token[:keep] + "***"
}
