package calendar

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"classflow/logger"
)

// Client syncs schedules into the external calendar/conferencing service.
// Sync is best-effort and never blocks schedule creation.
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

// UpsertPayload describes one schedule to the calendar service.
type UpsertPayload struct {
	ScheduleID uint      `json:"schedule_id"`
	Title      string    `json:"title"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Location   string    `json:"location,omitempty"`
}

// Upsert pushes the schedule to the calendar service.
func (c *Client) Upsert(payload UpsertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest("PUT", c.baseURL+"/v1/events", bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("calendar service returned non-OK status: " + resp.Status)
	}

	return nil
}

// UpsertAsync runs Upsert in the background, logging failures only.
func (c *Client) UpsertAsync(payload UpsertPayload) {
	go func() {
		if err := c.Upsert(payload); err != nil {
			logger.Error("Failed to sync schedule to calendar", err)
		}
	}()
}
