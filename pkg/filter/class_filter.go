// Package filter classifies class names by the package they live in.
// Names are in internal form ("java/lang/String").
package filter

import (
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ClassCategory is where a class comes from.
type ClassCategory int

const (
	CategoryUnknown ClassCategory = iota
	// CategoryPrimitive is an array of a primitive type.
	CategoryPrimitive
	// CategorySDK is a platform class. It is provided by the runtime and
	// never shipped.
	CategorySDK
	// CategoryApplication is every other class.
	CategoryApplication
)

func (c ClassCategory) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategorySDK:
		return "sdk"
	case CategoryApplication:
		return "application"
	default:
		return "unknown"
	}
}

// DefaultSDKPrefixes lists the packages treated as SDK code.
var DefaultSDKPrefixes = []string{
	"java/",
	"android/animation/",
	"android/app/",
	"android/content/",
	"android/database/",
	"android/graphics/",
	"android/media/",
	"android/net/",
	"android/os/",
	"android/preference/",
	"android/text/",
	"android/util/",
	"android/view/",
	"android/widget/",
}

// DefaultCacheSize bounds the memoised classifications.
const DefaultCacheSize = 8192

// ClassFilter decides whether a class belongs to the SDK. Answers are
// memoised in an LRU cache that is dropped whenever the prefixes change.
// It is safe for concurrent use.
type ClassFilter struct {
	mu       sync.RWMutex
	prefixes []string
	cache    *lru.Cache[string, ClassCategory]
}

// NewClassFilter creates a filter with DefaultSDKPrefixes.
func NewClassFilter() *ClassFilter {
	return NewClassFilterSize(DefaultCacheSize)
}

// NewClassFilterSize creates a filter whose cache holds up to size names.
func NewClassFilterSize(size int) *ClassFilter {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, ClassCategory](size)
	return &ClassFilter{
		prefixes: slices.Clone(DefaultSDKPrefixes),
		cache:    cache,
	}
}

// Classify returns the category of a class or array descriptor.
func (f *ClassFilter) Classify(className string) ClassCategory {
	if className == "" {
		return CategoryUnknown
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if cat, ok := f.cache.Get(className); ok {
		return cat
	}
	cat := classify(className, f.prefixes)
	f.cache.Add(className, cat)
	return cat
}

func classify(name string, prefixes []string) ClassCategory {
	if elem, isArray := strings.CutPrefix(name, "["); isArray {
		elem = strings.TrimLeft(elem, "[")
		if len(elem) == 1 {
			return CategoryPrimitive
		}
		name = strings.TrimSuffix(strings.TrimPrefix(elem, "L"), ";")
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return CategorySDK
		}
	}
	return CategoryApplication
}

// IsSDK reports whether the class, or the element class of an array, is
// part of the SDK.
func (f *ClassFilter) IsSDK(className string) bool {
	return f.Classify(className) == CategorySDK
}

// AddPrefix adds an SDK package. Dotted names are accepted; the prefix is
// stored in internal form with a trailing slash.
func (f *ClassFilter) AddPrefix(prefix string) {
	prefix = strings.ReplaceAll(strings.TrimSpace(prefix), ".", "/")
	if prefix == "" {
		return
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.Contains(f.prefixes, prefix) {
		return
	}
	f.prefixes = append(f.prefixes, prefix)
	f.cache.Purge()
}

// AddPrefixes adds several SDK packages.
func (f *ClassFilter) AddPrefixes(prefixes []string) {
	for _, p := range prefixes {
		f.AddPrefix(p)
	}
}

// Prefixes returns the SDK packages.
func (f *ClassFilter) Prefixes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.prefixes)
}

// Cached returns the number of memoised classifications.
func (f *ClassFilter) Cached() int {
	return f.cache.Len()
}
