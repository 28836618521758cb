package twilio

import (
	"net/url"

	twclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the request signature on Twilio webhooks.
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks X-Twilio-Signature against the public webhook URL.
type SignatureValidator struct {
	rv  twclient.RequestValidator
	url string
}

func NewSignatureValidator(authToken, webhookURL string) *SignatureValidator {
	return &SignatureValidator{rv: twclient.NewRequestValidator(authToken), url: webhookURL}
}

// Valid reports whether signature matches the posted form parameters.
func (v *SignatureValidator) Valid(form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k, vals := range form {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.rv.Validate(v.url, params, signature)
}
