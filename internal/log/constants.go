package log

// Structured logging keys.
const (
	Args        = "args"
	Attempt     = "attempt"
	Bytes       = "bytes"
	Cmd         = "cmd"
	Description = "description"
	Dir         = "dir"
	Duration    = "duration"
	Error       = "error"
	File        = "file"
	Lock        = "lock"
	Path        = "path"
	Status      = "status"
	Stderr      = "stderr"
	Step        = "step"
	URL         = "url"
)
