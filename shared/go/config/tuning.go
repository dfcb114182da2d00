package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"artbeat/internal/gesture"
)

type tuningFile struct {
	Gesture gesture.Config `yaml:"gesture"`
}

// LoadGestureTuning reads the gesture section of the explore tuning file.
// A missing file yields the default tuning.
func LoadGestureTuning(path string) (gesture.Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return gesture.DefaultConfig(), nil
	}
	if err != nil {
		return gesture.Config{}, fmt.Errorf("open tuning file: %w", err)
	}
	defer f.Close()
	return DecodeGestureTuning(f)
}

// DecodeGestureTuning parses the gesture section and fills unset knobs with
// the defaults.
func DecodeGestureTuning(r io.Reader) (gesture.Config, error) {
	var file tuningFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return gesture.Config{}, fmt.Errorf("decode tuning file: %w", err)
	}
	return file.Gesture.WithDefaults(), nil
}
