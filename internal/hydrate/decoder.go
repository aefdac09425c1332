package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-confdiff"
	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat reports an encoding the decoder cannot read.
var ErrUnknownFormat = errors.New("hydrate: unknown format")

// ParseFormat accepts a format name or a file extension.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// FormatFromPath picks the format of a file by extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Context identifies the document being decoded.
type Context struct {
	Source   string
	Resource string
}

func (c Context) label() string {
	if c.Source == "" {
		return "<input>"
	}
	return c.Source
}

// PreHook rewrites the plain decoded payload before it becomes a Value.
type PreHook func(Context, any) (any, error)

// PostHook adjusts or validates the decoded Value.
type PostHook func(Context, confdiff.Value) (confdiff.Value, error)

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder converts configuration documents into confdiff values.
type Decoder struct {
	format       Format
	preHooks     []PreHook
	postHooks    []PostHook
	configureDec []func(*json.Decoder)
}

// WithFormat sets the document format. Defaults to JSON.
func WithFormat(format Format) DecoderOption {
	return func(d *Decoder) {
		d.format = format
	}
}

// WithPreHook applies hook prior to conversion.
func WithPreHook(hook PreHook) DecoderOption {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after conversion completes.
func WithPostHook(hook PostHook) DecoderOption {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig(configure func(*json.Decoder)) DecoderOption {
	return func(d *Decoder) {
		if configure != nil {
			d.configureDec = append(d.configureDec, configure)
		}
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{format: FormatJSON}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into a Value applying configured hooks. JSON
// numbers keep integer precision.
func (d *Decoder) Decode(ctx Context, payload []byte) (confdiff.Value, error) {
	var (
		raw any
		err error
	)
	switch d.format {
	case FormatJSON, "":
		raw, err = d.decodeJSON(payload)
	case FormatYAML:
		raw, err = decodeYAML(payload)
	case FormatTOML:
		raw, err = decodeTOML(payload)
	default:
		return confdiff.Value{}, fmt.Errorf("%w: %q", ErrUnknownFormat, d.format)
	}
	if err != nil {
		return confdiff.Value{}, fmt.Errorf("hydrate: decode %s %q: %w", d.formatName(), ctx.label(), err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, raw)
		if err != nil {
			return confdiff.Value{}, fmt.Errorf("hydrate: pre-hook for %q failed: %w", ctx.label(), err)
		}
		raw = next
	}

	value, err := confdiff.FromAny(raw)
	if err != nil {
		return confdiff.Value{}, fmt.Errorf("hydrate: convert %q: %w", ctx.label(), err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if value, err = hook(ctx, value); err != nil {
			return confdiff.Value{}, fmt.Errorf("hydrate: post-hook for %q failed: %w", ctx.label(), err)
		}
	}
	return value, nil
}

// DecodeReader reads r fully and decodes it.
func (d *Decoder) DecodeReader(ctx Context, r io.Reader) (confdiff.Value, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return confdiff.Value{}, fmt.Errorf("hydrate: read %q: %w", ctx.label(), err)
	}
	return d.Decode(ctx, payload)
}

// DecodeFile decodes the file at path, picking the format by extension. The
// path becomes the context source.
func DecodeFile(path string, resource string, opts ...DecoderOption) (confdiff.Value, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return confdiff.Value{}, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return confdiff.Value{}, fmt.Errorf("hydrate: read %q: %w", path, err)
	}
	opts = append([]DecoderOption{WithFormat(format)}, opts...)
	return NewDecoder(opts...).Decode(Context{Source: path, Resource: resource}, payload)
}

func (d *Decoder) formatName() string {
	if d.format == "" {
		return string(FormatJSON)
	}
	return string(d.format)
}

func (d *Decoder) decodeJSON(payload []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	for _, configure := range d.configureDec {
		configure(decoder)
	}
	var out any
	if err := decoder.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if decoder.More() {
		return nil, errors.New("unexpected data after top-level value")
	}
	return out, nil
}

func decodeYAML(payload []byte) (any, error) {
	var out any
	if err := yaml.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTOML(payload []byte) (any, error) {
	out := map[string]any{}
	if _, err := toml.Decode(string(payload), &out); err != nil {
		return nil, err
	}
	return out, nil
}
