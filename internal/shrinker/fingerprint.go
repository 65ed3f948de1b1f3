package shrinker

import (
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/class-shrinker/internal/graph"
)

// fingerprint digests what the persisted graph depends on besides the
// program classes: the rules of every counter set, the library inputs,
// the platform jars, the SDK packages and the bytecode version override.
// An incremental run needs state saved under the same fingerprint.
func (b *base) fingerprint(req Request) string {
	d := xxhash.New()
	for _, cs := range graph.CounterSets {
		rules := "none"
		if set := req.Rules[cs]; set != nil {
			rules = set.Digest()
		}
		fmt.Fprintf(d, "rules %s %s\n", cs, rules)
	}

	for _, input := range req.Inputs.Libraries {
		for _, jar := range input.Jars {
			fmt.Fprintf(d, "library jar %s\n", jar.Path)
		}
		for _, dir := range input.Directories {
			fmt.Fprintf(d, "library dir %s\n", dir.Path)
		}
	}
	for _, path := range req.Inputs.PlatformJars {
		fi, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(d, "platform %s missing\n", path)
			continue
		}
		fmt.Fprintf(d, "platform %s %d %d\n", path, fi.Size(), fi.ModTime().UnixNano())
	}

	if b.config.SDK == nil {
		fmt.Fprintln(d, "sdk off")
	} else {
		prefixes := b.config.SDK.Prefixes()
		sort.Strings(prefixes)
		fmt.Fprintf(d, "sdk %v\n", prefixes)
	}
	if v := b.config.BytecodeVersion; v != nil {
		fmt.Fprintf(d, "version %d.%d\n", v.Major, v.Minor)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
