package spec

// RunRequest is what the infrastructure needs to stage one run.
type RunRequest struct {
	ID      string
	TestSet string
	Group   string
	Case    TestCaseConfig
	Profile string
	// Dir is the host directory the run's artifacts are written to.
	Dir string
}
