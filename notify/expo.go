package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const (
	ProviderExpo       = "expo"
	DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"
)

var ErrNoExpoTicket = errors.New("expo response has no ticket")

// ExpoDispatcher sends through the Expo push service.
type ExpoDispatcher struct {
	client *resty.Client
	url    string
}

var _ Dispatcher = (*ExpoDispatcher)(nil)

// NewExpoDispatcher returns a dispatcher posting to url. httpClient may be nil, accessToken may be empty when the
// Expo project does not enforce push security.
func NewExpoDispatcher(httpClient *http.Client, url, accessToken string) *ExpoDispatcher {
	client := resty.New()
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	}

	client.
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}

	if url == "" {
		url = DefaultExpoPushURL
	}

	return &ExpoDispatcher{
		client: client,
		url:    url,
	}
}

type expoMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type ExpoRequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (err ExpoRequestError) Error() string {
	return fmt.Sprintf("expo push request failed with status %d: %s %s", err.StatusCode, err.Code, err.Message)
}

type ExpoTicketError struct {
	Code    string
	Message string
}

func (err ExpoTicketError) Error() string {
	return fmt.Sprintf("expo rejected the push message: %s %s", err.Code, err.Message)
}

func (d *ExpoDispatcher) Provider() string {
	return ProviderExpo
}

func (d *ExpoDispatcher) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}

	var expoRes expoResponse

	res, err := d.client.R().
		SetContext(ctx).
		SetBody([]expoMessage{{
			To:    msg.To,
			Sound: "default",
			Title: msg.Title,
			Body:  msg.Body,
			Data:  msg.Data,
		}}).
		SetResult(&expoRes).
		SetError(&expoRes).
		Post(d.url)
	if err != nil {
		return nil, fmt.Errorf("failed to send expo request: %w", err)
	}

	if !res.IsSuccess() {
		requestErr := &ExpoRequestError{StatusCode: res.StatusCode(), Message: res.String()}
		if len(expoRes.Errors) > 0 {
			requestErr.Code = expoRes.Errors[0].Code
			requestErr.Message = expoRes.Errors[0].Message
		}

		return nil, requestErr
	}

	if len(expoRes.Data) == 0 {
		return nil, ErrNoExpoTicket
	}

	ticket := expoRes.Data[0]
	if ticket.Status != "ok" {
		return nil, &ExpoTicketError{Code: ticket.Details.Error, Message: ticket.Message}
	}

	return &Receipt{Provider: ProviderExpo, ID: ticket.ID}, nil
}
