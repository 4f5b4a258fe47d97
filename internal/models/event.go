package models

import "encoding/json"

// ActionSourceWebsite marks conversions that happened on a website.
const ActionSourceWebsite = "website"

// EventTriggerRequest is the POST /api/trigger-capi payload sent by the browser.
type EventTriggerRequest struct {
	EventName string `json:"eventName"`
	EventURL  string `json:"eventUrl"`
}

// Valid reports whether both required fields are present.
func (r EventTriggerRequest) Valid() bool {
	return r.EventName != "" && r.EventURL != ""
}

// UserData carries the customer information parameters Meta uses for matching.
// Empty values are omitted rather than sent as "".
type UserData struct {
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
}

// ServerEvent is one entry of the Conversions API data array.
type ServerEvent struct {
	EventName      string   `json:"event_name"`
	EventTime      int64    `json:"event_time"`
	EventSourceURL string   `json:"event_source_url"`
	EventID        string   `json:"event_id"`
	ActionSource   string   `json:"action_source"`
	UserData       UserData `json:"user_data"`
}

// EventsPayload is the request body of POST /<pixel-id>/events.
// TestEventCode is dropped from the JSON entirely when empty.
type EventsPayload struct {
	Data          []ServerEvent `json:"data"`
	TestEventCode string        `json:"test_event_code,omitempty"`
}

// TriggerResponse is returned by POST /api/trigger-capi.
// MetaResponse is set on success, Error on failure.
type TriggerResponse struct {
	Success      bool            `json:"success"`
	MetaResponse json.RawMessage `json:"meta_response,omitempty"`
	Error        string          `json:"error,omitempty"`
}
