package payload

// Pattern matches messages on their discriminating fields. Empty fields act
// as wildcards.
type Pattern struct {
	Type      string
	Action    string
	Module    string
	Operation string
}

// Match reports whether msg carries every non-empty field of p.
func (p Pattern) Match(msg Message) bool {
	if msg == nil {
		return false
	}
	if p.Type != "" && msg.Type() != p.Type {
		return false
	}
	return fieldIs(msg, FieldAction, p.Action) &&
		fieldIs(msg, FieldModule, p.Module) &&
		fieldIs(msg, FieldOperation, p.Operation)
}

// IsAction matches {type: "action", action: name}.
func IsAction(name string) func(Message) bool {
	return Pattern{Type: TypeAction, Action: name}.Match
}

// Any matches every message.
func Any(Message) bool { return true }

func fieldIs(msg Message, key, want string) bool {
	if want == "" {
		return true
	}
	v, ok := msg.Get(key)
	if !ok {
		return false
	}
	s, _ := v.(string)
	return s == want
}
