// internal/discovery/types.go
package discovery

// DefaultExtensions are the C source and header suffixes collected by Find.
var DefaultExtensions = []string{".c", ".h"}

// Options controls which files Find returns.
type Options struct {
	// Extensions overrides DefaultExtensions. Matching is case-sensitive.
	Extensions []string
	// IncludeHidden descends into dot-directories, which are skipped by default.
	IncludeHidden bool
	// SkipTestdata prunes directories named testdata.
	SkipTestdata bool
	// GitTracked lists only files tracked at HEAD of the repository that
	// contains each root.
	GitTracked bool
	// Exclude holds filepath.Match patterns tested against the base name and
	// the slash-separated path.
	Exclude []string
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
}
