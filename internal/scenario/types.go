// Package scenario defines scenario package types and descriptor parsing.
// A scenario package is a directory containing a metadata descriptor
// (summary.xml or scenario.yaml) plus arbitrary content payload files.
package scenario

import (
	"time"
)

// DescriptorKind identifies the descriptor format of a package.
type DescriptorKind string

const (
	// DescriptorXML is the legacy XML descriptor (summary.xml).
	DescriptorXML DescriptorKind = "xml"
	// DescriptorYAML is the modern YAML descriptor (scenario.yaml).
	DescriptorYAML DescriptorKind = "yaml"
)

// DescriptorNames are the recognized descriptor file names, matched
// case-insensitively. A directory containing one of these directly inside it
// is a scenario package.
var DescriptorNames = map[string]DescriptorKind{
	"summary.xml":   DescriptorXML,
	"scenario.yaml": DescriptorYAML,
	"scenario.yml":  DescriptorYAML,
}

// Package is a candidate scenario package discovered by the scanner.
// It is ephemeral: produced per scan pass, never persisted.
type Package struct {
	// Path is the absolute path to the package directory.
	Path string

	// Root is the configured scan root this package was found under.
	Root string

	// DescriptorPath is the absolute path to the descriptor file.
	DescriptorPath string

	// Kind is the descriptor format.
	Kind DescriptorKind

	// DescriptorSize is the descriptor file size in bytes.
	DescriptorSize int64

	// DescriptorModTime is the descriptor's last modification time.
	DescriptorModTime time.Time
}

// Language codes detected from descriptor text.
const (
	LangKorean   = "kr"
	LangJapanese = "jp"
	LangUnknown  = ""
)

// Coupons describes entry requirements declared by a scenario.
type Coupons struct {
	Number int      `yaml:"number"`
	Names  []string `yaml:"names"`
}

// Metadata is the structured metadata declared inside a package's descriptor.
// Fields may be partially populated when the descriptor is incomplete;
// a missing optional field gets its zero value or the documented default.
type Metadata struct {
	Title    string   `yaml:"title"`
	Author   string   `yaml:"author"`
	Synopsis string   `yaml:"synopsis"`
	LevelMin int      `yaml:"-"`
	LevelMax int      `yaml:"-"`
	Tags     []string `yaml:"tags"`
	Revision string   `yaml:"revision"`
	Language string   `yaml:"language"`
	Coupons  Coupons  `yaml:"required_coupons"`
}

// DefaultTitle is used when a descriptor declares no title.
const DefaultTitle = "Unknown"

// DefaultAuthor is used when a descriptor declares no author.
const DefaultAuthor = "Unknown"

// applyDefaults fills documented defaults for missing optional fields.
func (m *Metadata) applyDefaults() {
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	if m.Author == "" {
		m.Author = DefaultAuthor
	}
}
