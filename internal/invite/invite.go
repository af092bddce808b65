// Package invite sends SMS room invitations through Twilio.
package invite

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	// ErrInvalidPhone is returned when the number cannot be normalized.
	ErrInvalidPhone = errors.New("invalid phone number format")

	// ErrNotConfigured is returned when Twilio credentials are missing.
	ErrNotConfigured = errors.New("sms invites not configured")
)

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// Service sends room invites over SMS. A nil client means invites are
// disabled and Send returns ErrNotConfigured.
type Service struct {
	client *twilio.RestClient
	from   string
}

// NewService creates the invite service. Empty credentials disable it.
func NewService(accountSID, authToken, fromNumber string) *Service {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		log.Println("[Invite] Twilio not configured, SMS invites disabled")
		return &Service{}
	}

	return &Service{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: fromNumber,
	}
}

// Enabled reports whether SMS invites can be sent.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Send texts a join invitation with the room code to the given number.
func (s *Service) Send(phoneNumber, roomCode, roomName string) error {
	if s.client == nil {
		return ErrNotConfigured
	}

	to := NormalizePhone(phoneNumber)
	if to == "" {
		return ErrInvalidPhone
	}

	body := fmt.Sprintf("You're invited to %s! Join with room code: %s", roomName, roomCode)

	_, err := s.client.Api.CreateMessage(&twilioApi.CreateMessageParams{
		To:   &to,
		From: &s.from,
		Body: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send invite SMS: %w", err)
	}

	log.Printf("[Invite] Sent room %s invite to %s", roomCode, to)
	return nil
}

// NormalizePhone normalizes a phone number to E.164 format. Returns ""
// when the number is unusable.
func NormalizePhone(phone string) string {
	normalized := nonPhoneChars.ReplaceAllString(phone, "")

	if !strings.HasPrefix(normalized, "+") {
		// Assume US if no country code
		normalized = "+1" + normalized
	}

	// "+" plus at least 8 digits
	if len(normalized) < 9 {
		return ""
	}
	return normalized
}
