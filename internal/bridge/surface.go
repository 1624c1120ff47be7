package bridge

import (
	"reflect"
	"sort"
	"strings"

	"pkt.systems/afmcp/artifactory"
	"pkt.systems/afmcp/internal/version"
)

const clientPackage = "pkt.systems/afmcp/artifactory"

// MethodDescriptor names one public method with its rendered signature.
type MethodDescriptor struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// Capabilities is the reflective discovery surface callers use before
// driving the generic invocation tools: the path type's public method set
// plus the argument reference conventions the codec understands.
type Capabilities struct {
	Package           string             `json:"package"`
	PackageVersion    string             `json:"package_version"`
	PathMethodCount   int                `json:"path_method_count"`
	PathMethods       []MethodDescriptor `json:"path_methods"`
	HandleWorkflow    []string           `json:"handle_workflow"`
	ArgumentEncodings map[string]string  `json:"argument_encodings"`
}

// ListCapabilities renders the discovery surface.
func ListCapabilities() Capabilities {
	methods := PathMethodDescriptors()
	return Capabilities{
		Package:         clientPackage,
		PackageVersion:  version.Current(),
		PathMethodCount: len(methods),
		PathMethods:     methods,
		HandleWorkflow: []string{
			"Use invoke_artifactory_root_method or invoke_artifactory_path_method.",
			"If a result includes a handle_id, pass {\"__handle_id__\": \"<id>\"} in later calls or use invoke_artifactory_handle_method.",
			"Use drop_artifactory_handle to release handles.",
		},
		ArgumentEncodings: map[string]string{
			"handle_ref": `{"__handle_id__": "h1"}`,
			"path_ref":   `{"__path__": {"repository": "libs-release-local", "path": "com/example/app.jar", "base_url": "https://host/artifactory"}}`,
			"bytes":      `{"__bytes_base64__": "<base64-bytes>"}`,
		},
	}
}

// PathMethodDescriptors reflects the public method surface of the
// repository path type, sorted by name.
func PathMethodDescriptors() []MethodDescriptor {
	t := reflect.TypeOf((*artifactory.Path)(nil))
	out := make([]MethodDescriptor, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		out = append(out, MethodDescriptor{Name: m.Name, Signature: renderSignature(m.Type)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// renderSignature formats a method's parameter and result types, dropping
// the receiver. Reflection carries no parameter names, so only types are
// shown.
func renderSignature(fn reflect.Type) string {
	var b strings.Builder
	b.WriteString("(")
	for i := 1; i < fn.NumIn(); i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		if fn.IsVariadic() && i == fn.NumIn()-1 {
			b.WriteString("...")
			b.WriteString(fn.In(i).Elem().String())
		} else {
			b.WriteString(fn.In(i).String())
		}
	}
	b.WriteString(")")
	switch fn.NumOut() {
	case 0:
	case 1:
		b.WriteString(" ")
		b.WriteString(fn.Out(0).String())
	default:
		b.WriteString(" (")
		for i := 0; i < fn.NumOut(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fn.Out(i).String())
		}
		b.WriteString(")")
	}
	return b.String()
}
