package main

import (
	"os"
	"strconv"
	"strings"

	"north/internal/cli"
)

func isTaskID(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	return err == nil && id > 0
}

func rewriteDirectTaskLookupArgs(argv []string) []string {
	// Convenience: `north <id>` works like `north tasks show <id>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first (e.g. `north --db ./x.db 42`), so we look for the
	// first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config":    true,
		"--db":        true,
		"--format":    true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "tasks", "show")
		out = append(out, argv[i:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isTaskID(argv[i+1]) {
				return rewrite(i + 1)
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
			}
			continue
		}

		if isTaskID(a) {
			return rewrite(i)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectTaskLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
