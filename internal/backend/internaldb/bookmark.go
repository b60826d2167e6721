package internaldb

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// bookmark is the keyset cursor for paginated internal searches. It records
// the last returned row's sort value and sequence number; the sequence is the
// deterministic tie-break, so pages never duplicate or drop rows even when
// the primary sort is not unique.
type bookmark struct {
	SortValue any   `json:"s,omitempty"`
	Seq       int64 `json:"q"`
}

func encodeBookmark(b bookmark) string {
	raw, _ := json.Marshal(b)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeBookmark(token string) (bookmark, error) {
	var b bookmark
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return b, fmt.Errorf("malformed bookmark: %w", err)
	}
	// UseNumber keeps bigint sort values exact through the round trip.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return b, fmt.Errorf("malformed bookmark: %w", err)
	}
	return b, nil
}
