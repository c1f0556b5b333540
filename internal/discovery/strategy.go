package discovery

import "context"

// Context carries what a resolution knows about the caller.
type Context struct {
	// ProjectRoot is the single project directory, or "" when there is none
	// (no workspace, or several roots).
	ProjectRoot string
}

// HasRoot reports whether a single project root is known.
func (c Context) HasRoot() bool {
	return c.ProjectRoot != ""
}

// FindResult is the outcome of a successful resolution.
type FindResult struct {
	Binary   string   `json:"binary" yaml:"binary"`
	Identity Identity `json:"strategy" yaml:"strategy"`
	Label    string   `json:"label" yaml:"label"`
}

// Strategy is one way of locating the binary.
//
// Locate returns "" with a nil error when the binary is simply not there.
// A non-nil error means the attempt failed; the chain logs it and moves on.
type Strategy struct {
	Identity     Identity
	Precondition func(Context) bool
	Locate       func(ctx context.Context, rc Context) (string, error)
	OnSuccess    func(FindResult)
}

func hasRoot(rc Context) bool {
	return rc.HasRoot()
}
