package metadata

// Header keys carried alongside frame and runtime messages on the channel host.
const (
	KeyOrigin        = "bmc_origin"
	KeyEventType     = "bmc_event_type"
	KeyTransportErr  = "bmc_transport_error"
	KeySenderID      = "bmc_sender_id"
	KeySenderURL     = "bmc_sender_url"
	KeySenderFrameID = "bmc_sender_frame_id"
	KeyTabID         = "bmc_tab_id"
	KeyReplyTo       = "bmc_reply_to"
	KeyCorrelationID = "bmc_correlation_id"
	KeyNoReply       = "bmc_no_reply"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
// Empty values are skipped so optional headers stay absent.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// Get returns the value stored under key, or "" when absent.
func (m Metadata) Get(key string) string {
	return m[key]
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
