package provider

// Capabilities declares what a vendor adapter can do. Routing never guesses:
// an adapter is only eligible for an operation it explicitly advertises.
type Capabilities struct {
	CreateAddress     bool `json:"create_address"`
	CustomUsername    bool `json:"custom_username"`
	CustomDomain      bool `json:"custom_domain"`
	ListMessages      bool `json:"list_messages"`
	FetchMessage      bool `json:"fetch_message"`
	MessageHTML       bool `json:"message_html"`
	Attachments       bool `json:"attachments"`
	ExpirationControl bool `json:"expiration_control"`
}

// Satisfies reports whether c advertises every capability required demands.
// A nil requirement is satisfied by any adapter.
func (c Capabilities) Satisfies(required *Capabilities) bool {
	if required == nil {
		return true
	}
	if required.CreateAddress && !c.CreateAddress {
		return false
	}
	if required.CustomUsername && !c.CustomUsername {
		return false
	}
	if required.CustomDomain && !c.CustomDomain {
		return false
	}
	if required.ListMessages && !c.ListMessages {
		return false
	}
	if required.FetchMessage && !c.FetchMessage {
		return false
	}
	if required.MessageHTML && !c.MessageHTML {
		return false
	}
	if required.Attachments && !c.Attachments {
		return false
	}
	if required.ExpirationControl && !c.ExpirationControl {
		return false
	}
	return true
}
