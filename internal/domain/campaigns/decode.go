package campaigns

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeSegmentConfiguration turns a loosely typed configuration map (numbers as
// strings, booleans as "1"/"", categories as csv) into a SegmentConfiguration.
// Fields that cannot be decoded are left unset.
func DecodeSegmentConfiguration(raw map[string]any) SegmentConfiguration {
	var cfg SegmentConfiguration
	decodeLenient(raw, &cfg)
	return cfg
}

// DecodeSegment decodes a segment record whose configuration may be a nested
// object or a JSON string.
func DecodeSegment(id string, raw map[string]any) (*Segment, error) {
	if raw == nil {
		return nil, fmt.Errorf("segment %s: empty payload", id)
	}
	seg := &Segment{ID: id}
	if v, ok := raw["id"]; ok && seg.ID == "" {
		seg.ID = scalarText(v)
	}
	seg.Name = scalarText(raw["name"])
	seg.Priority = math.MaxInt32
	if p, ok := toInt(raw["priority"]); ok {
		seg.Priority = p
	}

	switch cfg := raw["configuration"].(type) {
	case map[string]any:
		seg.Configuration = DecodeSegmentConfiguration(cfg)
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(cfg), &m); err == nil {
			seg.Configuration = DecodeSegmentConfiguration(m)
		}
	case nil:
		// flat shape: predicates at the top level
		seg.Configuration = DecodeSegmentConfiguration(raw)
	}
	if seg.ID == "" {
		return nil, fmt.Errorf("segment without id")
	}
	return seg, nil
}

// DecodeSegmentMap decodes the all_segments settings map keyed by segment id.
// Entries that cannot be decoded are skipped and reported.
func DecodeSegmentMap(raw map[string]map[string]any) ([]*Segment, []error) {
	var segments []*Segment
	var errs []error
	for id, payload := range raw {
		seg, err := DecodeSegment(id, payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		segments = append(segments, seg)
	}
	return segments, errs
}

// DecodePrompt decodes a prompt payload as sent by the page.
func DecodePrompt(raw map[string]any) (*Prompt, error) {
	var p Prompt
	decodeLenient(raw, &p)
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("prompt without id")
	}
	return &p, nil
}

func newDecoder(out any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       lenientScalarHook,
	})
}

// decodeLenient decodes raw into out. When the whole map fails it retries key by
// key so a single malformed field does not discard the rest.
func decodeLenient(raw map[string]any, out any) {
	if len(raw) == 0 {
		return
	}
	dec, err := newDecoder(out)
	if err != nil {
		return
	}
	if err := dec.Decode(raw); err == nil {
		return
	}
	for key, value := range raw {
		single, err := newDecoder(out)
		if err != nil {
			return
		}
		_ = single.Decode(map[string]any{key: value})
	}
}

// lenientScalarHook maps unparseable strings to zero values and csv strings to lists.
func lenientScalarHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	s = strings.TrimSpace(s)
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := toInt(s); ok {
			return n, nil
		}
		return 0, nil
	case reflect.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
		return false, nil
	case reflect.Slice:
		if to.Elem().Kind() != reflect.String {
			return data, nil
		}
		var items []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return items, nil
	}
	return data, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		f, err := t.Float64()
		return int(f), err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
