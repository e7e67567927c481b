// Package toolexecutor registers and executes the structured tools exposed
// to the layout agent.
//
// Invariants:
// - Tool names are unique.
// - Parameter schemas are compiled at registration time, so a malformed
//   schema fails fast instead of at the first call.
// - Execute never panics; a handler panic becomes an error result.
//
// Usage:
//
//	reg := toolexecutor.NewRegistry()
//	_ = reg.Register(toolexecutor.Definition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}},
//		Handler:     func(args map[string]any) map[string]any { return map[string]any{"status": "success", "text": args["text"]} },
//	})
package toolexecutor
