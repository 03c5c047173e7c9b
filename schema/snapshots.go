package schema

// ConsoleState describes the dispatch state of a console.
type ConsoleState string

const (
	// StateIdle indicates the console waits for input.
	StateIdle ConsoleState = "idle"
	// StateDispatching indicates a submitted line is being dispatched.
	StateDispatching ConsoleState = "dispatching"
	// StateRunning indicates an external process is running.
	StateRunning ConsoleState = "running"
)

// BufferSnapshot is a read-only view of a console buffer.
type BufferSnapshot struct {
	Segments []Segment `json:"segments"`
	Boundary int       `json:"boundary"`
	Caret    int       `json:"caret"`
	Length   int       `json:"length"`
	Lines    int       `json:"lines"`
}

// ConsoleSnapshot is a read-only view of a console for transports.
type ConsoleSnapshot struct {
	ID         ConsoleID      `json:"id"`
	State      ConsoleState   `json:"state"`
	Editable   bool           `json:"editable"`
	WorkingDir string         `json:"working_dir"`
	Theme      ThemeName      `json:"theme"`
	Buffer     BufferSnapshot `json:"buffer"`
}
