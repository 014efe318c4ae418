package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"classflow/logger"
)

// Client dispatches customer notifications through the notification
// service. All sends are best-effort: failures are logged and never bubble
// back into the booking path.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

type notification struct {
	Template string            `json:"template"`
	Email    string            `json:"email"`
	Params   map[string]string `json:"params,omitempty"`
}

func (c *Client) send(template, email string, params map[string]string) error {
	body, err := json.Marshal(notification{Template: template, Email: email, Params: params})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+"/v1/notifications", bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return errors.New("notification service returned non-OK status: " + resp.Status)
	}

	return nil
}

// fireAndForget runs the send in the background and logs failures.
func (c *Client) fireAndForget(template, email string, params map[string]string) {
	if email == "" {
		return
	}
	go func() {
		if err := c.send(template, email, params); err != nil {
			logger.Error("Failed to dispatch "+template+" notification", err)
		}
	}()
}

func (c *Client) SendBookingConfirmed(email string, params map[string]string) {
	c.fireAndForget("booking_confirmed", email, params)
}

func (c *Client) SendBookingCanceled(email string, params map[string]string) {
	c.fireAndForget("booking_canceled", email, params)
}

func (c *Client) SendWaitlistOffer(email string, params map[string]string) {
	c.fireAndForget("waitlist_offer", email, params)
}
