package mcp

import (
	"fmt"
	"strings"

	"pkt.systems/afmcp"
)

const (
	toolListArtifacts      = "list_artifacts"
	toolArtifactDetails    = "get_artifact_details"
	toolReadArtifactText   = "read_artifact_text"
	toolWriteArtifactText  = "write_artifact_text"
	toolListCapabilities   = "list_artifactory_capabilities"
	toolInvokeRootMethod   = "invoke_artifactory_root_method"
	toolInvokePathMethod   = "invoke_artifactory_path_method"
	toolInvokeHandleMethod = "invoke_artifactory_handle_method"
	toolListHandles        = "list_artifactory_handles"
	toolDropHandle         = "drop_artifactory_handle"
)

var mcpToolNames = []string{
	toolListArtifacts,
	toolArtifactDetails,
	toolReadArtifactText,
	toolWriteArtifactText,
	toolListCapabilities,
	toolInvokeRootMethod,
	toolInvokePathMethod,
	toolInvokeHandleMethod,
	toolListHandles,
	toolDropHandle,
}

type toolContract struct {
	Top      []string
	Purpose  string
	UseWhen  string
	Requires string
	Effects  string
	Retry    string
	Next     string
}

func formatToolDescription(spec toolContract) string {
	lines := make([]string, 0, len(spec.Top)+6)
	for _, line := range spec.Top {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	lines = append(lines, []string{
		"Purpose: " + spec.Purpose,
		"Use when: " + spec.UseWhen,
		"Requires: " + spec.Requires,
		"Effects: " + spec.Effects,
		"Retry: " + spec.Retry,
		"Next: " + spec.Next,
	}...)
	return strings.Join(lines, "\n")
}

const (
	discoveryLine   = "DISCOVERY: Call list_artifactory_capabilities before the invoke_* tools to learn the public method surface and argument encodings."
	handleLine      = "HANDLES: Results without a JSON shape come back as {type: handle, handle_id}. Handles live for the process lifetime until dropped; never invent handle ids."
	truncationLine  = "TRUNCATION: Collection results cap at max_items per nesting level and degrade to truncated_list wrappers; raise max_items instead of re-calling in a loop."
	credentialsLine = "CREDENTIALS: Calls use the server's configured Artifactory credentials; base_url only overrides the instance, never the auth."
)

func buildToolDescriptions(cfg afmcp.Config) map[string]string {
	defaultMaxItems := cfg.DefaultMaxItems
	if defaultMaxItems <= 0 {
		defaultMaxItems = afmcp.DefaultDefaultMaxItems
	}
	readDefault := cfg.ReadMaxBytes
	if readDefault <= 0 {
		readDefault = afmcp.DefaultReadMaxBytes
	}
	listDefault := defaultMaxItems
	if listDefault > maxListItems {
		listDefault = maxListItems
	}

	return map[string]string{
		toolListArtifacts: formatToolDescription(toolContract{
			Purpose:  "List artifacts under a repository folder with optional wildcard filtering and recursion.",
			UseWhen:  "You need to browse or enumerate repository contents before reading, writing, or invoking methods on specific artifacts.",
			Requires: fmt.Sprintf("`repository` is required. `path` defaults to the repository root. `pattern` is a shell wildcard on entry names (default `*`). `recursive=true` walks subfolders (pattern `*` widens to `**/*`). `max_items` is 1-%d (default %d). `include_stats=true` adds size and last-modified per entry.", maxListItems, listDefault),
			Effects:  "Read-only. Returns `count`, `truncated`, and `items` with uri/name/path/is_dir per entry.",
			Retry:    "Safe to retry; this is a read operation.",
			Next:     "Call `get_artifact_details` or `read_artifact_text` on interesting entries, or narrow with `pattern`/`path` when truncated.",
		}),
		toolArtifactDetails: formatToolDescription(toolContract{
			Purpose:  "Fetch storage metadata for one artifact or folder, with optional properties and download statistics.",
			UseWhen:  "You need checksums, timestamps, size, MIME type, property maps, or download counters for a known path.",
			Requires: "`repository` and `path` are required and must reference an existing artifact or folder. `include_properties` defaults to true; `include_download_stats` defaults to false and only applies to files.",
			Effects:  "Read-only. Returns `is_dir`, a `stat` block (checksums, timestamps, size, children), and the requested property/stats maps.",
			Retry:    "Safe to retry; this is a read operation.",
			Next:     "Use `read_artifact_text` for content, or `invoke_artifactory_path_method` for operations beyond the fixed tools.",
		}),
		toolReadArtifactText: formatToolDescription(toolContract{
			Purpose:  "Download a text artifact when its size is below max_bytes.",
			UseWhen:  fmt.Sprintf("You need the content of a configuration file, manifest, POM, or similar small text artifact (default cap %d bytes).", readDefault),
			Requires: "`repository` and a non-empty file `path` are required. `max_bytes` is 1-5000000; the artifact's stat size is checked before download.",
			Effects:  "Read-only. Returns `size` and the artifact `content` as text.",
			Retry:    "Safe to retry; this is a read operation.",
			Next:     "Raise `max_bytes` when the size check rejects the artifact, or switch to the invoke tools for binary content as `__bytes_base64__`.",
		}),
		toolWriteArtifactText: formatToolDescription(toolContract{
			Top: []string{
				credentialsLine,
			},
			Purpose:  "Upload text content as an artifact, optionally creating parent folders.",
			UseWhen:  "You need to deploy or update a small text artifact (manifest, marker file, configuration).",
			Requires: "`repository`, a non-empty file `path`, and `content` are required. Existing artifacts are only replaced when `overwrite=true`. `create_parents` defaults to true.",
			Effects:  "Deploys the content and returns `bytes_written` plus `overwritten` (whether an existing artifact was replaced).",
			Retry:    "Retrying a successful write re-deploys the same content; retry after failure only once the conflict or validation message is resolved.",
			Next:     "Verify with `get_artifact_details` when checksums matter.",
		}),
		toolListCapabilities: formatToolDescription(toolContract{
			Purpose:  "Enumerate the public method surface of the bundled Artifactory client and the bridge argument encodings.",
			UseWhen:  "Before the first invoke_* call in a session, or when a method-not-found error suggests checking the surface.",
			Requires: "Nothing.",
			Effects:  "Read-only and local; no Artifactory request is made. Returns sorted method names with signatures, the handle workflow, and the `__handle_id__`/`__path__`/`__bytes_base64__` encodings.",
			Retry:    "Safe to retry; the surface is static per server version.",
			Next:     "Pick a method and call `invoke_artifactory_root_method` or `invoke_artifactory_path_method`.",
		}),
		toolInvokeRootMethod: formatToolDescription(toolContract{
			Top: []string{
				discoveryLine,
				handleLine,
				truncationLine,
			},
			Purpose:  "Invoke any public instance-level client method by name (AQL, Repositories, RepositoryConfig, Users, Groups, Ping, Version, Path).",
			UseWhen:  "You need admin, search, or system functionality the fixed-shape tools do not cover.",
			Requires: fmt.Sprintf("`method` is required and must be a public method name. `positional_args` and `keyword_args` are JSON-encoded; embed handles as {\"__handle_id__\": \"<id>\"}, binary data as {\"__bytes_base64__\": \"...\"} and repository paths as {\"__path__\": {...}}. `max_items` is 1-10000 (default %d).", defaultMaxItems),
			Effects:  "Executes the method against Artifactory with the server's credentials. Returns {target, method, result_type, result}; non-JSON results register new handles.",
			Retry:    "Safe for read methods. Mutating methods (user/group/repository administration) follow the underlying API's semantics; do not blind-retry them.",
			Next:     "Chain returned handles through `invoke_artifactory_handle_method`, then `drop_artifactory_handle` when finished.",
		}),
		toolInvokePathMethod: formatToolDescription(toolContract{
			Top: []string{
				discoveryLine,
				handleLine,
				truncationLine,
			},
			Purpose:  "Invoke any public method on a repository path object (Stat, Iterdir, Glob, ReadBytes, WriteBytes, Properties, SetProperties, Move, Copy, Delete, ...).",
			UseWhen:  "You need artifact-level operations beyond the fixed-shape tools, such as property mutation, move/copy, or deletion.",
			Requires: "`repository` and `method` are required; `path` defaults to the repository root. Argument encoding matches invoke_artifactory_root_method.",
			Effects:  "Executes the method against the addressed path. Destructive methods (Delete, Move) take effect immediately; there is no undo.",
			Retry:    "Safe for read methods; treat Delete/Move/Copy/WriteBytes as non-idempotent and verify state before retrying.",
			Next:     "Inspect the result; iterator results report `truncated` so you can narrow the target instead of re-draining.",
		}),
		toolInvokeHandleMethod: formatToolDescription(toolContract{
			Top: []string{
				handleLine,
				truncationLine,
			},
			Purpose:  "Invoke a method on an object previously returned as a handle.",
			UseWhen:  "A prior invoke result carried {type: handle} and you need to keep working with that object across round trips.",
			Requires: "`handle_id` must reference a live handle from this process; `method` must be public on the referenced object's type.",
			Effects:  "Executes the method on the stored object. Results encode like any invoke call and may register further handles.",
			Retry:    "Handle ids never expire on their own but are process-scoped; after a method-not-found or unknown-handle error, re-list with `list_artifactory_handles` instead of guessing.",
			Next:     "`drop_artifactory_handle` when the chain is complete.",
		}),
		toolListHandles: formatToolDescription(toolContract{
			Purpose:  "List live object handles registered by the invoke tools.",
			UseWhen:  "You lost track of a handle id, or want to audit what the session has accumulated.",
			Requires: "Nothing.",
			Effects:  "Read-only and local. Returns `count` plus handle_id, class_name, and the insertion-time summary per handle.",
			Retry:    "Safe to retry.",
			Next:     "`invoke_artifactory_handle_method` to use one, `drop_artifactory_handle` to release one.",
		}),
		toolDropHandle: formatToolDescription(toolContract{
			Purpose:  "Release a stored handle so the referenced object can be reclaimed.",
			UseWhen:  "A handle chain is complete, or you are cleaning up before ending a long session.",
			Requires: "`handle_id` is required (non-empty).",
			Effects:  "Removes the handle idempotently: `dropped` is always true, `existed` reports whether the id was present, `remaining_handles` counts what is left.",
			Retry:    "Safe to retry; dropping an absent id is defined success.",
			Next:     "Nothing; a dropped id never becomes valid again.",
		}),
	}
}
