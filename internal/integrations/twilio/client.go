// Package twilio sends WhatsApp messages through the Twilio REST API and
// verifies inbound webhook signatures.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	twiliogo "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"mentor-relay/internal/domain"
)

// messageAPI is the slice of the Twilio v2010 API used by Client.
// *twilioApi.ApiService satisfies it.
type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	FetchMessage(sid string, params *twilioApi.FetchMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Client wraps the Twilio messages resource for a single origin number.
type Client struct {
	api  messageAPI
	from string
}

// New creates a Client sending from the given origin identity,
// e.g. "whatsapp:+14155238886".
func New(api messageAPI, from string) (*Client, error) {
	if api == nil {
		return nil, errors.New("twilio: api must not be nil")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("twilio: origin number must not be empty")
	}
	return &Client{api: api, from: from}, nil
}

// NewFromCredentials builds a Client backed by the real Twilio REST API.
func NewFromCredentials(accountSID, authToken, from string) (*Client, error) {
	if strings.TrimSpace(accountSID) == "" || strings.TrimSpace(authToken) == "" {
		return nil, errors.New("twilio: account SID and auth token must be provided")
	}
	rest := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return New(rest.Api, from)
}

// Send creates one outbound message and returns its SID and initial status.
func (c *Client) Send(ctx context.Context, to, body string) (domain.SentMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.SentMessage{}, err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	msg, err := c.api.CreateMessage(params)
	if err != nil {
		return domain.SentMessage{}, fmt.Errorf("twilio: send to %s: %w", to, err)
	}
	if msg == nil || msg.Sid == nil {
		return domain.SentMessage{}, errors.New("twilio: send returned no message sid")
	}

	out := domain.SentMessage{SID: *msg.Sid, Status: status(msg)}
	slog.Debug("twilio message created", "sid", out.SID, "status", out.Status)
	return out, nil
}

// Fetch returns the current delivery status of a message.
func (c *Client) Fetch(ctx context.Context, sid string) (domain.MessageStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := c.api.FetchMessage(sid, &twilioApi.FetchMessageParams{})
	if err != nil {
		return "", fmt.Errorf("twilio: fetch %s: %w", sid, err)
	}
	return status(msg), nil
}

func status(msg *twilioApi.ApiV2010Message) domain.MessageStatus {
	if msg == nil || msg.Status == nil {
		return ""
	}
	return domain.MessageStatus(*msg.Status)
}
