package permission

import (
	"regexp"
	"strings"
)

// shellMetachars matches characters that chain or redirect commands. A
// command containing any of them never qualifies as safe, regardless of the
// leading word.
var shellMetachars = regexp.MustCompile("[;&|`$<>]")

// safeCommands are read-only, side-effect-free commands allowed without
// confirmation.
var safeCommands = map[string]bool{
	"basename": true,
	"cat":      true,
	"date":     true,
	"df":       true,
	"dirname":  true,
	"du":       true,
	"echo":     true,
	"env":      true,
	"file":     true,
	"find":     true,
	"grep":     true,
	"head":     true,
	"id":       true,
	"ls":       true,
	"printenv": true,
	"ps":       true,
	"pwd":      true,
	"readlink": true,
	"realpath": true,
	"rg":       true,
	"sort":     true,
	"stat":     true,
	"tail":     true,
	"tr":       true,
	"uname":    true,
	"uniq":     true,
	"wc":       true,
	"which":    true,
	"whoami":   true,
}

// safeGitSubcommands are git subcommands that only inspect repository state.
var safeGitSubcommands = map[string]bool{
	"blame":  true,
	"branch": true,
	"diff":   true,
	"log":    true,
	"remote": true,
	"show":   true,
	"status": true,
}

// IsSafeCommand reports whether a shell command is on the built-in
// safe-command allowlist.
func IsSafeCommand(command string) bool {
	if shellMetachars.MatchString(command) {
		return false
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}

	if fields[0] == "git" {
		return len(fields) > 1 && safeGitSubcommands[fields[1]]
	}
	return safeCommands[fields[0]]
}
