package domain

// CommonOptions contains the CLI switches shared by resolution runs.
type CommonOptions struct {
	Verbose  bool
	Keep     bool
	Progress bool
}
