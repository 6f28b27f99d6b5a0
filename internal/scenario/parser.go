package scenario

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxDescriptorSize caps how much of a descriptor is read.
// A descriptor larger than this is treated as malformed.
const MaxDescriptorSize = 4 * 1024 * 1024

// ParseError reports a malformed or unreadable descriptor.
// It identifies the offending field when one can be determined.
type ParseError struct {
	Path  string // descriptor path
	Field string // offending field, empty when the whole document is unreadable
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s: field %q: %v", e.Path, e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseDescriptor reads and parses a package's descriptor into Metadata.
// Missing optional fields yield defaults, never an error. A structurally
// corrupt descriptor returns a *ParseError; callers skip the package for the
// pass and keep any previously indexed entry untouched.
//
// The context bounds the read so one huge or wedged descriptor cannot stall
// a whole scan pass.
func ParseDescriptor(ctx context.Context, pkg *Package) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ParseError{Path: pkg.DescriptorPath, Err: err}
	}

	info, err := os.Stat(pkg.DescriptorPath)
	if err != nil {
		return nil, &ParseError{Path: pkg.DescriptorPath, Err: err}
	}
	if info.Size() > MaxDescriptorSize {
		return nil, &ParseError{Path: pkg.DescriptorPath,
			Err: fmt.Errorf("descriptor too large: %d bytes", info.Size())}
	}

	data, err := os.ReadFile(pkg.DescriptorPath)
	if err != nil {
		return nil, &ParseError{Path: pkg.DescriptorPath, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &ParseError{Path: pkg.DescriptorPath, Err: err}
	}

	var meta *Metadata
	switch pkg.Kind {
	case DescriptorYAML:
		meta, err = parseYAML(data)
	default:
		meta, err = parseXML(data)
	}
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = pkg.DescriptorPath
			return nil, pe
		}
		return nil, &ParseError{Path: pkg.DescriptorPath, Err: err}
	}

	if meta.Language == "" {
		meta.Language = DetectLanguage(string(data))
	}
	meta.applyDefaults()
	return meta, nil
}

// xmlSummary mirrors the legacy Summary.xml descriptor shape.
type xmlSummary struct {
	XMLName  xml.Name    `xml:"Summary"`
	Property xmlProperty `xml:"Property"`
}

type xmlProperty struct {
	Name        string     `xml:"Name"`
	Author      string     `xml:"Author"`
	Description string     `xml:"Description"`
	Level       xmlLevel   `xml:"Level"`
	Tags        []string   `xml:"Tags>Tag"`
	Revision    string     `xml:"Revision"`
	Coupons     xmlCoupons `xml:"RequiredCoupons"`
}

type xmlLevel struct {
	Min string `xml:"min,attr"`
	Max string `xml:"max,attr"`
}

type xmlCoupons struct {
	Number int    `xml:"number,attr"`
	Names  string `xml:",chardata"`
}

func parseXML(data []byte) (*Metadata, error) {
	var doc xmlSummary
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	meta := &Metadata{
		Title:    strings.TrimSpace(doc.Property.Name),
		Author:   strings.TrimSpace(doc.Property.Author),
		Synopsis: strings.TrimSpace(doc.Property.Description),
		Revision: strings.TrimSpace(doc.Property.Revision),
	}

	// Level attributes are optional; a present-but-garbled value names the field.
	var err error
	if meta.LevelMin, err = parseLevelAttr(doc.Property.Level.Min); err != nil {
		return nil, &ParseError{Field: "Level.min", Err: err}
	}
	if meta.LevelMax, err = parseLevelAttr(doc.Property.Level.Max); err != nil {
		return nil, &ParseError{Field: "Level.max", Err: err}
	}

	for _, tag := range doc.Property.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	}

	meta.Coupons.Number = doc.Property.Coupons.Number
	for _, name := range strings.Split(doc.Property.Coupons.Names, "\n") {
		name = strings.TrimSpace(name)
		if name != "" {
			meta.Coupons.Names = append(meta.Coupons.Names, name)
		}
	}

	return meta, nil
}

func parseLevelAttr(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid level %q", s)
	}
	return n, nil
}

// yamlDescriptor mirrors the modern scenario.yaml descriptor shape.
type yamlDescriptor struct {
	Title    string    `yaml:"title"`
	Author   string    `yaml:"author"`
	Synopsis string    `yaml:"synopsis"`
	Level    yamlLevel `yaml:"level"`
	Tags     []string  `yaml:"tags"`
	Revision string    `yaml:"revision"`
	Language string    `yaml:"language"`
	Coupons  Coupons   `yaml:"required_coupons"`
}

type yamlLevel struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func parseYAML(data []byte) (*Metadata, error) {
	var doc yamlDescriptor
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	meta := &Metadata{
		Title:    strings.TrimSpace(doc.Title),
		Author:   strings.TrimSpace(doc.Author),
		Synopsis: strings.TrimSpace(doc.Synopsis),
		LevelMin: doc.Level.Min,
		LevelMax: doc.Level.Max,
		Revision: strings.TrimSpace(doc.Revision),
		Language: strings.TrimSpace(doc.Language),
		Coupons:  doc.Coupons,
	}
	if meta.LevelMin < 0 || meta.LevelMax < 0 {
		return nil, &ParseError{Field: "level", Err: fmt.Errorf("negative level range %d..%d", doc.Level.Min, doc.Level.Max)}
	}

	for _, tag := range doc.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	}

	return meta, nil
}

// Hangul, hiragana, and katakana unicode ranges.
var (
	hangulRegex   = regexp.MustCompile(`[\x{AC00}-\x{D7AF}]`)
	hiraganaRegex = regexp.MustCompile(`[\x{3040}-\x{309F}]`)
	katakanaRegex = regexp.MustCompile(`[\x{30A0}-\x{30FF}]`)
)

// DetectLanguage guesses the descriptor language from character frequencies.
// Returns "kr", "jp", or "" when neither script dominates.
func DetectLanguage(text string) string {
	hangul := len(hangulRegex.FindAllString(text, -1))
	hiragana := len(hiraganaRegex.FindAllString(text, -1))
	katakana := len(katakanaRegex.FindAllString(text, -1))

	kana := hiragana + katakana
	switch {
	case hangul > kana && hangul > 0:
		return LangKorean
	case kana > hangul:
		return LangJapanese
	default:
		return LangUnknown
	}
}
