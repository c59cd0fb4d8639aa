package provider

// FilterPage applies the unread and since filters first, then offset and
// limit, so pagination always addresses the filtered sequence. Adapters
// share this because most vendors offer no server-side equivalent.
func FilterPage(msgs []Message, q ListQuery) []Message {
	filtered := msgs
	if q.UnreadOnly || !q.Since.IsZero() {
		filtered = make([]Message, 0, len(msgs))
		for _, m := range msgs {
			if q.UnreadOnly && !m.Unread {
				continue
			}
			if !q.Since.IsZero() && m.ReceivedAt.Before(q.Since) {
				continue
			}
			filtered = append(filtered, m)
		}
	}
	if q.Offset > 0 {
		if q.Offset >= len(filtered) {
			return []Message{}
		}
		filtered = filtered[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(filtered) {
		filtered = filtered[:q.Limit]
	}
	return filtered
}
