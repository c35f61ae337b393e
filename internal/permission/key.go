// Package permission decides whether a tool call proceeds automatically, is
// blocked automatically, or needs a human decision, and brokers that human
// decision asynchronously.
package permission

import "strings"

// Key encodes a tool name plus optional argument text as a permission key.
// Side-effect-free tools use the bare name; argument-sensitive tools use
// "name(<argument text>)".
func Key(tool, arg string) string {
	if arg == "" {
		return tool
	}
	return tool + "(" + arg + ")"
}

// PrefixRule encodes a stored prefix permission, "name(<prefix>:*)".
func PrefixRule(tool, prefix string) string {
	return tool + "(" + prefix + ":*)"
}

// splitKey splits "name(<arg>)" into name and arg. ok is false for bare
// tool-name keys.
func splitKey(key string) (tool, arg string, ok bool) {
	open := strings.Index(key, "(")
	if open <= 0 || !strings.HasSuffix(key, ")") {
		return key, "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

// prefixOf returns the prefix of a stored entry "tool(<prefix>:*)" when the
// entry is a prefix rule for the given tool.
func prefixOf(entry, tool string) (string, bool) {
	entryTool, arg, ok := splitKey(entry)
	if !ok || entryTool != tool || !strings.HasSuffix(arg, ":*") {
		return "", false
	}
	return strings.TrimSuffix(arg, ":*"), true
}

// matchesPrefix reports whether an argument is covered by a prefix rule:
// the argument equals the prefix or starts with the prefix followed by a
// space. "npm install:*" covers "npm install" and "npm install foo" but not
// "npm installx".
func matchesPrefix(arg, prefix string) bool {
	if prefix == "" {
		return false
	}
	return arg == prefix || strings.HasPrefix(arg, prefix+" ")
}
