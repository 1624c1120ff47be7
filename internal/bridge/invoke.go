package bridge

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Engine invokes public methods on target objects by name, decoding
// JSON-shaped arguments through the codec and encoding results back,
// registering handles for anything without a JSON form.
type Engine struct {
	codec           *Codec
	defaultMaxItems int
}

// NewEngine returns an engine bound to codec. defaultMaxItems applies when
// an invocation does not carry its own truncation cap.
func NewEngine(codec *Codec, defaultMaxItems int) *Engine {
	return &Engine{codec: codec, defaultMaxItems: defaultMaxItems}
}

// Invocation names one method call on a resolved target object. MaxItems
// overrides the engine default when non-nil.
type Invocation struct {
	Target      any
	TargetLabel string
	Method      string
	Args        []any
	Kwargs      map[string]any
	MaxItems    *int
}

// Result is the envelope returned for a successful invocation.
type Result struct {
	Target     string `json:"target"`
	Method     string `json:"method"`
	ResultType string `json:"result_type"`
	Result     any    `json:"result"`
}

// Invoke validates the invocation, calls the method, and encodes the
// result. Validation short-circuits in order: truncation cap range, empty
// name, private name, method existence (with near-name suggestions),
// argument decoding, and finally the call itself. Errors raised by the
// target method propagate as failures; only error values *returned* by a
// method are encoded as exception results.
func (e *Engine) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	maxItems, err := e.normalizeMaxItems(inv.MaxItems)
	if err != nil {
		return Result{}, err
	}

	name := strings.TrimSpace(inv.Method)
	if name == "" {
		return Result{}, Errorf(KindValidation, "method cannot be empty.")
	}
	if isPrivateName(name) {
		return Result{}, Errorf(KindValidation, "Method %q is private/special and cannot be invoked. Use public callables only (discover via list_artifactory_capabilities).", name)
	}
	if inv.Target == nil {
		return Result{}, Errorf(KindInternal, "invocation target cannot be nil")
	}

	method := reflect.ValueOf(inv.Target).MethodByName(name)
	if !method.IsValid() {
		if hasExportedField(inv.Target, name) {
			return Result{}, Errorf(KindValidation, "Attribute %q exists on target type %s but is not callable. This bridge only supports method invocation.", name, typeLabel(inv.Target))
		}
		suggestion := renderMethodSuggestions(name, publicMethodNames(inv.Target))
		return Result{}, Errorf(KindNotFound, "Method %q not found on target type %s. Call list_artifactory_capabilities for discoverability.%s", name, typeLabel(inv.Target), suggestion)
	}

	in, err := e.buildCallArgs(ctx, name, method.Type(), inv.Args, inv.Kwargs)
	if err != nil {
		return Result{}, err
	}

	outs, err := callMethod(name, method, in)
	if err != nil {
		return Result{}, err
	}
	resultValue, err := splitResults(name, outs)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Target:     inv.TargetLabel,
		Method:     name,
		ResultType: typeLabel(resultValue),
		Result:     e.codec.Encode(resultValue, maxItems, true),
	}, nil
}

func (e *Engine) normalizeMaxItems(maxItems *int) (int, error) {
	if maxItems == nil {
		return e.defaultMaxItems, nil
	}
	if *maxItems < 1 || *maxItems > 10000 {
		return 0, Errorf(KindValidation, "max_items must be between 1 and 10000.")
	}
	return *maxItems, nil
}

// isPrivateName reports whether name falls outside the public surface: a
// leading underscore or a lowercase (unexported) first rune.
func isPrivateName(name string) bool {
	if strings.HasPrefix(name, "_") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name)
	return !unicode.IsUpper(r)
}

// publicMethodNames lists the exported method names of the target's
// concrete type, sorted.
func publicMethodNames(target any) []string {
	t := reflect.TypeOf(target)
	names := make([]string, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		names = append(names, t.Method(i).Name)
	}
	sort.Strings(names)
	return names
}

func hasExportedField(target any, name string) bool {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return false
	}
	field, ok := v.Type().FieldByName(name)
	return ok && field.IsExported()
}

// buildCallArgs decodes positional and keyword arguments and converts them
// to the method's parameter types. A leading context.Context parameter is
// injected, not supplied by the caller. Keyword arguments map onto the
// fields of a trailing options struct when the method has one.
func (e *Engine) buildCallArgs(ctx context.Context, name string, fn reflect.Type, args []any, kwargs map[string]any) ([]reflect.Value, error) {
	decodedArgs := make([]any, len(args))
	for i, raw := range args {
		decoded, err := e.codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		decodedArgs[i] = decoded
	}
	decodedKwargs := make(map[string]any, len(kwargs))
	for key, raw := range kwargs {
		decoded, err := e.codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		decodedKwargs[key] = decoded
	}

	params := make([]reflect.Type, fn.NumIn())
	for i := range params {
		params[i] = fn.In(i)
	}

	in := make([]reflect.Value, 0, len(params)+len(decodedArgs))
	idx := 0
	if idx < len(params) && params[idx] == contextType {
		in = append(in, reflect.ValueOf(ctx))
		idx++
	}

	optIndex := -1
	if len(decodedKwargs) > 0 {
		last := len(params) - 1
		if fn.IsVariadic() || last < idx || params[last].Kind() != reflect.Struct {
			return nil, Errorf(KindValidation, "Method %q does not accept keyword arguments; pass positional_args only.", name)
		}
		optIndex = last
	}

	if fn.IsVariadic() {
		fixed := len(params) - idx - 1
		if len(decodedArgs) < fixed {
			return nil, Errorf(KindValidation, "Method %q expects at least %d argument(s), got %d.", name, fixed, len(decodedArgs))
		}
		for i := 0; i < fixed; i++ {
			value, err := convertArg(decodedArgs[i], params[idx+i])
			if err != nil {
				return nil, Errorf(KindValidation, "Invalid argument %d for method %q: %v", i+1, name, err)
			}
			in = append(in, value)
		}
		elemType := params[len(params)-1].Elem()
		for i := fixed; i < len(decodedArgs); i++ {
			value, err := convertArg(decodedArgs[i], elemType)
			if err != nil {
				return nil, Errorf(KindValidation, "Invalid argument %d for method %q: %v", i+1, name, err)
			}
			in = append(in, value)
		}
		return in, nil
	}

	want := len(params) - idx
	if optIndex >= 0 {
		want--
	}
	if len(decodedArgs) != want {
		return nil, Errorf(KindValidation, "Method %q expects %d argument(s), got %d.", name, want, len(decodedArgs))
	}
	for i := 0; i < want; i++ {
		value, err := convertArg(decodedArgs[i], params[idx+i])
		if err != nil {
			return nil, Errorf(KindValidation, "Invalid argument %d for method %q: %v", i+1, name, err)
		}
		in = append(in, value)
	}
	if optIndex >= 0 {
		options, err := buildOptionsStruct(name, params[optIndex], decodedKwargs)
		if err != nil {
			return nil, err
		}
		in = append(in, options)
	}
	return in, nil
}

func buildOptionsStruct(name string, optType reflect.Type, kwargs map[string]any) (reflect.Value, error) {
	options := reflect.New(optType).Elem()
	keys := make([]string, 0, len(kwargs))
	for key := range kwargs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field, ok := matchOptionField(optType, key)
		if !ok {
			return reflect.Value{}, Errorf(KindValidation, "Unknown keyword argument %q for method %q.", key, name)
		}
		value, err := convertArg(kwargs[key], field.Type)
		if err != nil {
			return reflect.Value{}, Errorf(KindValidation, "Invalid keyword argument %q for method %q: %v", key, name, err)
		}
		options.FieldByIndex(field.Index).Set(value)
	}
	return options, nil
}

func matchOptionField(optType reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < optType.NumField(); i++ {
		field := optType.Field(i)
		if !field.IsExported() {
			continue
		}
		if strings.EqualFold(field.Name, key) || strings.EqualFold(field.Name, strings.ReplaceAll(key, "_", "")) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// convertArg coerces a decoded JSON value to the parameter type. JSON
// numbers arrive as float64 and convert to integer kinds only when whole
// and in range.
func convertArg(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use null as %s", target)
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	switch {
	case rv.Kind() == reflect.Float64 && isIntKind(target.Kind()):
		f := rv.Float()
		if f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("cannot use %v as %s", value, target)
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(int64(f)) {
			return reflect.Value{}, fmt.Errorf("value %v overflows %s", value, target)
		}
		out.SetInt(int64(f))
		return out, nil
	case rv.Kind() == reflect.Float64 && isUintKind(target.Kind()):
		f := rv.Float()
		if f < 0 || f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("cannot use %v as %s", value, target)
		}
		out := reflect.New(target).Elem()
		if out.OverflowUint(uint64(f)) {
			return reflect.Value{}, fmt.Errorf("value %v overflows %s", value, target)
		}
		out.SetUint(uint64(f))
		return out, nil
	case rv.Kind() == reflect.Float64 && (target.Kind() == reflect.Float32 || target.Kind() == reflect.Float64):
		return rv.Convert(target), nil
	case rv.Kind() == reflect.String && target.Kind() == reflect.String:
		return rv.Convert(target), nil
	case rv.Kind() == reflect.Bool && target.Kind() == reflect.Bool:
		return rv.Convert(target), nil
	case target.Kind() == reflect.Slice && rv.Kind() == reflect.Slice:
		out := reflect.MakeSlice(target, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := convertArg(rv.Index(i).Interface(), target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case target.Kind() == reflect.Map && rv.Kind() == reflect.Map:
		out := reflect.MakeMapWithSize(target, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := convertArg(iter.Key().Interface(), target.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			val, err := convertArg(iter.Value().Interface(), target.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(key, val)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use value of type %s as %s", rv.Type(), target)
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// callMethod performs the reflective call, converting a panic in the
// target method into an error so one bad invocation cannot take the
// process down.
func callMethod(name string, method reflect.Value, in []reflect.Value) (outs []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			outs = nil
			err = Errorf(KindInternal, "Method %q panicked: %v", name, r)
		}
	}()
	return method.Call(in), nil
}

// splitResults separates the method's return values into the result payload
// and the error channel. A non-nil trailing error is a failure. Multiple
// non-error results combine into a list. Channel and function results are
// deferred computations the bridge cannot represent and are rejected.
func splitResults(name string, outs []reflect.Value) (any, error) {
	values := make([]any, 0, len(outs))
	for _, out := range outs {
		if out.Type() == errorType {
			if !out.IsNil() {
				return nil, out.Interface().(error)
			}
			continue
		}
		values = append(values, out.Interface())
	}
	for _, value := range values {
		switch reflect.ValueOf(value).Kind() {
		case reflect.Chan:
			return nil, Errorf(KindUnsupported, "Method %q returned a channel, which is not supported by this bridge.", name)
		case reflect.Func:
			return nil, Errorf(KindUnsupported, "Method %q returned a function, which is not supported by this bridge.", name)
		}
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	}
	return values, nil
}
