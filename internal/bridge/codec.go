package bridge

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"time"

	"pkt.systems/afmcp/artifactory"
)

// Iterator is the lazy-sequence shape the codec drains: artifact listings
// and similar streams implement it instead of materializing full slices.
// Draining is destructive; a partially consumed iterator resumes where it
// stopped.
type Iterator interface {
	Next() (any, bool)
}

// PathResolverFunc builds a repository path object for a decoded __path__
// reference. An empty baseURL selects the process-wide default; resolution
// fails when neither is configured.
type PathResolverFunc func(baseURL, repository, path string) (*artifactory.Path, error)

// Codec converts between in-process values and JSON-safe shapes. Encoding
// is total: every value is representable, worst case as an opaque handle
// registered in the store. Decoding recognizes the three special reference
// shapes (handle, base64 bytes, repository path) on single-key objects and
// falls through to structural decoding otherwise.
type Codec struct {
	handles     *Store
	resolvePath PathResolverFunc
}

// NewCodec returns a codec backed by the given handle store. resolvePath
// may be nil when __path__ references are not expected.
func NewCodec(handles *Store, resolvePath PathResolverFunc) *Codec {
	return &Codec{handles: handles, resolvePath: resolvePath}
}

// Encode renders value as a JSON-safe shape. Slices and arrays truncate at
// maxItems independently per nesting level; iterators drain up to maxItems.
// Values with no JSON form become handles when createHandles is true and
// degrade to a textual rendering otherwise.
func (c *Codec) Encode(value any, maxItems int, createHandles bool) any {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return encodeBytes(v)
	case *artifactory.Path:
		if v == nil {
			return nil
		}
		return map[string]any{
			"type":       "artifactory_path",
			"uri":        v.URI(),
			"repository": v.Repository(),
			"path":       v.RelativePath(),
		}
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format(time.RFC3339Nano)
	case error:
		if isTypedNil(v) {
			return nil
		}
		return map[string]any{"type": "exception", "class": typeLabel(v), "message": v.Error()}
	case Iterator:
		if isTypedNil(v) {
			return nil
		}
		return c.encodeIterator(v, maxItems, createHandles)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return value
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return c.encodeOpaque(value, createHandles)
		}
		return c.Encode(rv.Elem().Interface(), maxItems, createHandles)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			out[key] = c.Encode(iter.Value().Interface(), maxItems, createHandles)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return encodeBytes(rv.Bytes())
		}
		total := rv.Len()
		limit := total
		if limit > maxItems {
			limit = maxItems
		}
		items := make([]any, 0, limit)
		for i := 0; i < limit; i++ {
			items = append(items, c.Encode(rv.Index(i).Interface(), maxItems, createHandles))
		}
		if total > maxItems {
			return map[string]any{
				"type":     "truncated_list",
				"items":    items,
				"total":    total,
				"returned": maxItems,
			}
		}
		return items
	}

	return c.encodeOpaque(value, createHandles)
}

// isTypedNil catches nil pointers wrapped in a non-nil interface, which
// would otherwise panic inside Error or Next calls.
func isTypedNil(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func encodeBytes(data []byte) map[string]any {
	return map[string]any{
		"type":   "bytes",
		"size":   len(data),
		"base64": base64.StdEncoding.EncodeToString(data),
	}
}

func (c *Codec) encodeIterator(it Iterator, maxItems int, createHandles bool) map[string]any {
	items := []any{}
	truncated := false
	for {
		item, ok := it.Next()
		if !ok {
			break
		}
		if len(items) >= maxItems {
			truncated = true
			break
		}
		items = append(items, c.Encode(item, maxItems, createHandles))
	}
	return map[string]any{
		"type":      "iterator",
		"items":     items,
		"truncated": truncated,
		"returned":  len(items),
	}
}

func (c *Codec) encodeOpaque(value any, createHandles bool) map[string]any {
	if createHandles {
		return map[string]any{
			"type":       "handle",
			"handle_id":  c.handles.Put(value),
			"class_name": typeLabel(value),
			"summary":    summarize(value),
		}
	}
	return map[string]any{"type": "repr", "value": summarize(value)}
}

// Decode converts a JSON-shaped argument into its in-process value,
// resolving handle, byte and path references recursively. A special key is
// only recognized when it is the object's sole key; objects carrying extra
// keys alongside one fall through to generic map decoding.
func (c *Codec) Decode(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return c.decodeMapping(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			decoded, err := c.Decode(item)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil
	default:
		return value, nil
	}
}

func (c *Codec) decodeMapping(m map[string]any) (any, error) {
	if len(m) == 1 {
		if raw, ok := m["__handle_id__"]; ok {
			id, ok := raw.(string)
			if !ok {
				return nil, Errorf(KindValidation, "__handle_id__ must be a string.")
			}
			return c.handles.Get(id)
		}
		if raw, ok := m["__bytes_base64__"]; ok {
			encoded, ok := raw.(string)
			if !ok {
				return nil, Errorf(KindValidation, "__bytes_base64__ must be a string.")
			}
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, Errorf(KindValidation, "Invalid __bytes_base64__ payload.")
			}
			return decoded, nil
		}
		if raw, ok := m["__path__"]; ok {
			ref, ok := raw.(map[string]any)
			if !ok {
				return nil, Errorf(KindValidation, "__path__ must be an object.")
			}
			return c.decodePathRef(ref)
		}
	}
	out := make(map[string]any, len(m))
	for key, item := range m {
		decoded, err := c.Decode(item)
		if err != nil {
			return nil, err
		}
		out[key] = decoded
	}
	return out, nil
}

func (c *Codec) decodePathRef(ref map[string]any) (any, error) {
	repository, ok := ref["repository"].(string)
	if !ok {
		return nil, Errorf(KindValidation, "__path__.repository must be a string.")
	}
	relative := ""
	if raw, present := ref["path"]; present {
		relative, ok = raw.(string)
		if !ok {
			return nil, Errorf(KindValidation, "__path__.path must be a string.")
		}
	}
	baseURL := ""
	if raw, present := ref["base_url"]; present && raw != nil {
		baseURL, ok = raw.(string)
		if !ok {
			return nil, Errorf(KindValidation, "__path__.base_url must be a string if provided.")
		}
	}
	if c.resolvePath == nil {
		return nil, Errorf(KindUnsupported, "__path__ references are not supported here.")
	}
	return c.resolvePath(baseURL, repository, relative)
}
