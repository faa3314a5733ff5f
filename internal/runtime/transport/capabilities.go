package transport

// Capabilities describes delivery guarantees of a host transport.
type Capabilities struct {
	Name string
	// Synchronous hosts run listeners before the posting call returns.
	Synchronous bool
	// OrderedPerChannel hosts deliver each channel's events in FIFO order.
	OrderedPerChannel bool
	// SupportsReplies hosts carry runtime replies back to the sender.
	SupportsReplies bool
}

var (
	LocalCapabilities = Capabilities{
		Name:              "local",
		Synchronous:       true,
		OrderedPerChannel: true,
		SupportsReplies:   true,
	}
	ChannelCapabilities = Capabilities{
		Name:              "channel",
		Synchronous:       false,
		OrderedPerChannel: true,
		SupportsReplies:   true,
	}
)
