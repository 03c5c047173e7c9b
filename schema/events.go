package schema

// EventType identifies a console event payload.
type EventType string

const (
	// EventAppend carries text appended to the frozen region.
	EventAppend EventType = "append"
	// EventPrompt carries a freshly printed prompt.
	EventPrompt EventType = "prompt"
	// EventInput signals a change in the editable region or caret.
	EventInput EventType = "input"
	// EventClear signals that the buffer was cleared.
	EventClear EventType = "clear"
	// EventState carries a console state transition.
	EventState EventType = "state"
	// EventTheme carries a theme change.
	EventTheme EventType = "theme"
	// EventBell asks the frontend for error feedback.
	EventBell EventType = "bell"
)

// ConsoleEvent is emitted by a console to its frontends.
type ConsoleEvent struct {
	ConsoleID ConsoleID    `json:"console_id"`
	Type      EventType    `json:"type"`
	Segments  []Segment    `json:"segments,omitempty"`
	State     ConsoleState `json:"state,omitempty"`
	Editable  bool         `json:"editable"`
	Theme     ThemeName    `json:"theme,omitempty"`
}
