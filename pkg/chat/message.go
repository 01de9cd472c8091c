// Package chat turns decoded SSE records from the shop assistant into typed
// messages and folds them into conversations.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is one answer fragment streamed by the shop assistant, together
// with the products it refers to.
type Message struct {
	Answer  string    `json:"answer"`
	Results []Product `json:"results"`
}

// Product is a catalogue item attached to a Message.
type Product struct {
	ID          ProductID `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Image       string    `json:"image,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
}

// ProductID is a product identifier. The assistant emits numeric ids for
// catalogue products, but string ids are accepted as well. Numeric records
// which JSON shape the id arrived in, so "42" and 42 stay distinct and
// re-encode as they were received.
type ProductID struct {
	Value   string
	Numeric bool
}

// StringID returns an id that encodes as a JSON string.
func StringID(s string) ProductID {
	return ProductID{Value: s}
}

// NumericID returns an id that encodes as a JSON number.
func NumericID(n int64) ProductID {
	return ProductID{Value: strconv.FormatInt(n, 10), Numeric: true}
}

// IsZero reports whether the id is absent.
func (id ProductID) IsZero() bool {
	return id.Value == ""
}

func (id ProductID) String() string {
	return id.Value
}

func (id *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ProductID{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*id = ProductID{Value: n.String(), Numeric: true}
	return nil
}

func (id ProductID) MarshalJSON() ([]byte, error) {
	if id.Numeric && id.Value != "" {
		return []byte(id.Value), nil
	}
	return json.Marshal(id.Value)
}
