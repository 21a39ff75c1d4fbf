package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
)

const (
	metaUserID    = "user_id"
	metaOrderID   = "order_id"
	metaTopUp     = "is_wallet_topup"
	metaCourseIDs = "course_ids"
)

// encodeMetadata flattens session metadata into the string map shape
// Stripe carries on a checkout session.
func encodeMetadata(m domain.SessionMetadata) map[string]string {
	out := map[string]string{
		metaUserID: m.UserID,
		metaTopUp:  strconv.FormatBool(m.IsWalletTopUp),
	}
	if m.OrderID != nil {
		out[metaOrderID] = m.OrderID.String()
	}
	if len(m.CourseIDs) > 0 {
		out[metaCourseIDs] = strings.Join(m.CourseIDs, ",")
	}
	return out
}

func decodeMetadata(raw map[string]string) (domain.SessionMetadata, error) {
	m := domain.SessionMetadata{
		UserID: raw[metaUserID],
	}
	if m.UserID == "" {
		return domain.SessionMetadata{}, fmt.Errorf("metadata is missing %s", metaUserID)
	}
	m.IsWalletTopUp, _ = strconv.ParseBool(raw[metaTopUp])

	if v := raw[metaOrderID]; v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return domain.SessionMetadata{}, fmt.Errorf("metadata has invalid %s: %w", metaOrderID, err)
		}
		m.OrderID = &id
	}
	if v := raw[metaCourseIDs]; v != "" {
		m.CourseIDs = strings.Split(v, ",")
	}
	return m, nil
}

// marshalMetadata serializes metadata into the single custom_id string
// PayPal purchase units carry.
func marshalMetadata(m domain.SessionMetadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal session metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(customID string) (domain.SessionMetadata, error) {
	var m domain.SessionMetadata
	if err := json.Unmarshal([]byte(customID), &m); err != nil {
		return domain.SessionMetadata{}, fmt.Errorf("unmarshal session metadata: %w", err)
	}
	if m.UserID == "" {
		return domain.SessionMetadata{}, fmt.Errorf("session metadata is missing user_id")
	}
	return m, nil
}
