package learning

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/mitchellh/mapstructure"
)

// DecodeEvent converts a loosely typed stream payload into a FeedbackEvent.
// Keys may be snake_case or camelCase; timestamps may be RFC 3339 strings or
// unix seconds; numbers may arrive as strings. The event is not validated.
func DecodeEvent(payload map[string]any) (FeedbackEvent, error) {
	var ev FeedbackEvent

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &ev,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			unixToTimeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return ev, err
	}

	if err := dec.Decode(snakeKeys(payload)); err != nil {
		return ev, fmt.Errorf("%w: decoding feedback payload: %w", ErrUpdateRejected, err)
	}
	return ev, nil
}

func unixToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		return time.Unix(int64(reflect.ValueOf(data).Float()), 0).UTC(), nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return time.Unix(reflect.ValueOf(data).Int(), 0).UTC(), nil
	default:
		return data, nil
	}
}

func snakeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = snakeKeys(nested)
		}
		out[toSnake(k)] = v
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
