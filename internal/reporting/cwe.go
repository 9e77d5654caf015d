// internal/reporting/cwe.go
package reporting

import "fmt"

// CWEEntry holds details about a specific CWE.
type CWEEntry struct {
	ID          string
	Name        string
	Description string
}

// CWEProvider looks up weakness details for report text.
type CWEProvider interface {
	GetCWE(id string) *CWEEntry
}

// InMemoryCWEProvider serves the pathname weaknesses findings can carry.
type InMemoryCWEProvider struct {
	data map[string]CWEEntry
}

// NewInMemoryCWEProvider returns a provider preloaded with the path
// traversal family.
func NewInMemoryCWEProvider() *InMemoryCWEProvider {
	data := map[string]CWEEntry{
		"CWE-22": {ID: "CWE-22", Name: "Improper Limitation of a Pathname to a Restricted Directory ('Path Traversal')", Description: "The product uses external input to construct a pathname that is intended to identify a file or directory located underneath a restricted parent directory, but it does not properly neutralize special elements within the pathname that can cause it to resolve outside of the restricted directory."},
		"CWE-23": {ID: "CWE-23", Name: "Relative Path Traversal", Description: "The product uses external input to construct a pathname but does not neutralize sequences such as \"..\" that can resolve to a location outside of the restricted directory."},
		"CWE-36": {ID: "CWE-36", Name: "Absolute Path Traversal", Description: "The product uses external input to construct a pathname but does not neutralize absolute path sequences such as \"/abs/path\" that can resolve to a location outside of the restricted directory."},
		"CWE-73": {ID: "CWE-73", Name: "External Control of File Name or Path", Description: "The product allows user input to control or influence paths or file names that are used in filesystem operations."},
	}
	return &InMemoryCWEProvider{data: data}
}

// GetCWE returns the entry for id, or a placeholder naming the id.
func (p *InMemoryCWEProvider) GetCWE(id string) *CWEEntry {
	entry, exists := p.data[id]
	if !exists {
		return &CWEEntry{ID: id, Name: fmt.Sprintf("%s (Details Not Found)", id)}
	}
	return &entry
}

// cweURL points at the MITRE page for a CWE-N id.
func cweURL(id string) string {
	var n int
	if _, err := fmt.Sscanf(id, "CWE-%d", &n); err != nil {
		return ""
	}
	return fmt.Sprintf("https://cwe.mitre.org/data/definitions/%d.html", n)
}
