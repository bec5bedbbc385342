package approval

import (
	"context"
	"errors"
	"time"

	"github.com/sharath018/family-events-backend/config"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Gateway is the outbound messaging capability. Implemented by
// TwilioGateway in production and fakes in tests.
type Gateway interface {
	Send(ctx context.Context, to, body string) (messageSID string, err error)
}

// ===========================
// 📤 Twilio SMS gateway
type TwilioGateway struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioGateway(cfg *config.Config) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	client.SetTimeout(time.Duration(cfg.ExternalTimeoutSeconds) * time.Second)

	return &TwilioGateway{
		client: client,
		from:   cfg.TwilioFromNumber,
	}
}

// Send dispatches one SMS. The timeout lives on the underlying HTTP
// client; ctx is honored only for early cancellation checks since the
// Twilio SDK does not thread contexts through.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.from)
	params.SetBody(body)

	resp, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", errors.New("twilio returned no message sid")
	}

	return *resp.Sid, nil
}
