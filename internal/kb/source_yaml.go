package kb

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/medical_kb.yaml
var embeddedKB []byte

// factFile is the on-disk shape of a YAML fact source.
type factFile struct {
	Version string `yaml:"version"`
	Facts   []Fact `yaml:"facts"`
}

func parseYAML(descriptor string, raw []byte) ([]Fact, error) {
	var f factFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, &LoadError{Source: descriptor, Reason: fmt.Sprintf("parse yaml: %v", err)}
	}
	if len(f.Facts) == 0 {
		return nil, &LoadError{Source: descriptor, Reason: "source contains no facts"}
	}
	return f.Facts, nil
}

type embeddedSource struct{}

func (embeddedSource) Descriptor() string { return "embedded:" }

func (embeddedSource) Facts(_ context.Context) ([]Fact, error) {
	return parseYAML("embedded:", embeddedKB)
}

type fileSource struct {
	path string
}

func (s fileSource) Descriptor() string { return "file:" + s.path }

func (s fileSource) Facts(_ context.Context) ([]Fact, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &LoadError{Source: s.Descriptor(), Reason: fmt.Sprintf("read file: %v", err)}
	}
	return parseYAML(s.Descriptor(), raw)
}
