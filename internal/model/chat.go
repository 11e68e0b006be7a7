package model

import "encoding/json"

// Source points at the document passage an answer was drawn from. Page is kept
// as raw JSON because the inference service sends either a number or a string.
type Source struct {
	Title string          `json:"title"`
	URL   string          `json:"url"`
	Page  json.RawMessage `json:"page,omitempty"`
}

// ReplyUnit is one bot turn shown to the client.
type ReplyUnit struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}
