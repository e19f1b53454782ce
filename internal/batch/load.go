// Package batch submits many feedback payload files with bounded concurrency.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/jira-feedback/internal/adf"
	"github.com/randalmurphal/jira-feedback/internal/feedback"
	"github.com/randalmurphal/jira-feedback/internal/metadata"
)

// fileSpec is the on-disk shape of a payload file:
//
//	text: "Save button does nothing. Tried twice."
//	screenshot: shots/save.png   # relative to this file
//	format: bullets              # optional
//	device:
//	  OS: iOS 17.2
//	  Model: iPhone 15
//	metadata:
//	  user: {id: 42, plan: pro}
type fileSpec struct {
	Text           string    `yaml:"text"`
	Screenshot     string    `yaml:"screenshot"`
	SkipScreenshot bool      `yaml:"skip_screenshot"`
	Format         string    `yaml:"format"`
	Device         yaml.Node `yaml:"device"`
	Metadata       yaml.Node `yaml:"metadata"`
}

// LoadFile reads a .yaml, .yml or .json payload file.
func LoadFile(path string) (feedback.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return feedback.Payload{}, fmt.Errorf("read payload %s: %w", path, err)
	}

	var p feedback.Payload
	var screenshot, format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		p, screenshot, format, err = parseJSON(data)
	case ".yaml", ".yml":
		p, screenshot, format, err = parseYAML(data)
	default:
		err = fmt.Errorf("unsupported extension (want .yaml, .yml or .json)")
	}
	if err != nil {
		return feedback.Payload{}, fmt.Errorf("payload %s: %w", path, err)
	}

	if format != "" {
		if p.Format, err = adf.ParseFormat(format); err != nil {
			return feedback.Payload{}, fmt.Errorf("payload %s: %w", path, err)
		}
	}

	if screenshot != "" {
		if !filepath.IsAbs(screenshot) {
			screenshot = filepath.Join(filepath.Dir(path), screenshot)
		}
		if p.Screenshot, err = os.ReadFile(screenshot); err != nil {
			return feedback.Payload{}, fmt.Errorf("payload %s: read screenshot: %w", path, err)
		}
	}

	p.Source = path
	return p, nil
}

func parseYAML(data []byte) (p feedback.Payload, screenshot, format string, err error) {
	var raw fileSpec
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return p, "", "", err
	}

	p.Text = raw.Text
	p.SkipScreenshot = raw.SkipScreenshot

	if raw.Device.Kind != 0 {
		dev, err := metadata.FromYAMLNode(&raw.Device)
		if err != nil {
			return p, "", "", fmt.Errorf("device: %w", err)
		}
		if p.Device, err = deviceDetails(dev); err != nil {
			return p, "", "", err
		}
	}

	if raw.Metadata.Kind != 0 {
		meta, err := metadata.FromYAMLNode(&raw.Metadata)
		if err != nil {
			return p, "", "", fmt.Errorf("metadata: %w", err)
		}
		if meta.Kind() != metadata.KindNull {
			p.Metadata = &meta
		}
	}

	return p, raw.Screenshot, raw.Format, nil
}

func parseJSON(data []byte) (p feedback.Payload, screenshot, format string, err error) {
	if !gjson.ValidBytes(data) {
		return p, "", "", fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return p, "", "", fmt.Errorf("top level must be an object")
	}

	p.Text = doc.Get("text").String()
	p.SkipScreenshot = doc.Get("skip_screenshot").Bool()

	if dev := doc.Get("device"); dev.Exists() {
		v, err := metadata.ParseJSON([]byte(dev.Raw))
		if err != nil {
			return p, "", "", fmt.Errorf("device: %w", err)
		}
		if p.Device, err = deviceDetails(v); err != nil {
			return p, "", "", err
		}
	}

	if meta := doc.Get("metadata"); meta.Exists() {
		v, err := metadata.ParseJSON([]byte(meta.Raw))
		if err != nil {
			return p, "", "", fmt.Errorf("metadata: %w", err)
		}
		if v.Kind() != metadata.KindNull {
			p.Metadata = &v
		}
	}

	return p, doc.Get("screenshot").String(), doc.Get("format").String(), nil
}

// deviceDetails flattens a device mapping into ordered label/value pairs.
// Nested values are shown as compact JSON.
func deviceDetails(v metadata.Value) (adf.Details, error) {
	switch v.Kind() {
	case metadata.KindNull:
		return nil, nil
	case metadata.KindMapping:
	default:
		return nil, fmt.Errorf("device must be a mapping, got %s", v.Kind())
	}

	var d adf.Details
	for _, e := range v.Entries() {
		d = d.Add(e.Key, e.Value.String())
	}
	return d, nil
}
