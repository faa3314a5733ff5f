package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies Watermill metadata into a Metadata map.
func FromWatermill(md message.Metadata) Metadata {
	if len(md) == 0 {
		return Metadata{}
	}

	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}

// Apply copies the headers onto a Watermill message.
func (m Metadata) Apply(msg *message.Message) {
	for k, v := range m {
		msg.Metadata.Set(k, v)
	}
}
