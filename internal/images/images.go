// Package images matches product records with image files.
//
// Strict mode is used during migration and only trusts files named after the
// product slug. Fuzzy mode scores every file against the slug and name and
// is used to repair products that still carry the placeholder.
package images

import (
	"regexp"
	"sort"
	"strings"
)

// Defaults for Options
const (
	DefaultURLPrefix   = "/images/products"
	DefaultPlaceholder = "/images/placeholder.jpg"
)

// MaxImages caps the image list written for a product
const MaxImages = 4

// Extensions tried for the exact slug.ext fallback, in order
var Extensions = []string{"webp", "jpg", "jpeg", "png"}

var variantPattern = regexp.MustCompile(`-([123])\.(webp|jpg|jpeg|png)$`)

// Options control how file names become stored image paths
type Options struct {
	URLPrefix   string
	Placeholder string
}

func (o Options) withDefaults() Options {
	if o.URLPrefix == "" {
		o.URLPrefix = DefaultURLPrefix
	}
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	return o
}

// Path returns the stored path for a file name
func (o Options) Path(file string) string {
	return strings.TrimSuffix(o.withDefaults().URLPrefix, "/") + "/" + file
}

// Strict returns up to MaxImages paths for slug: the -main file first, then
// the -1/-2/-3 variants in ascending order. Without those it falls back to
// an exact slug.ext file, then to any other file starting with the slug,
// and finally to the placeholder alone.
func Strict(slug string, files []string, opts Options) []string {
	opts = opts.withDefaults()
	slug = strings.ToLower(slug)

	var candidates []string
	for _, f := range files {
		lower := strings.ToLower(f)
		if strings.HasPrefix(lower, slug) && !strings.Contains(lower, "-thumb") {
			candidates = append(candidates, f)
		}
	}
	sort.Strings(candidates)

	var picked []string
	seen := make(map[string]bool)
	add := func(f string) {
		if !seen[f] && len(picked) < MaxImages {
			seen[f] = true
			picked = append(picked, f)
		}
	}

	for _, f := range candidates {
		if strings.Contains(strings.ToLower(f), "-main") {
			add(f)
			break
		}
	}

	type variant struct {
		n    string
		file string
	}
	var variants []variant
	for _, f := range candidates {
		if m := variantPattern.FindStringSubmatch(strings.ToLower(f)); m != nil {
			variants = append(variants, variant{n: m[1], file: f})
		}
	}
	sort.SliceStable(variants, func(i, j int) bool { return variants[i].n < variants[j].n })
	added := 0
	for _, v := range variants {
		if added == 3 {
			break
		}
		if !seen[v.file] {
			add(v.file)
			added++
		}
	}

	if len(picked) == 0 {
		if f, ok := exactMatch(slug, files); ok {
			add(f)
		}
	}
	if len(picked) == 0 && len(candidates) > 0 {
		add(candidates[0])
	}
	if len(picked) == 0 {
		return []string{opts.Placeholder}
	}

	out := make([]string, len(picked))
	for i, f := range picked {
		out[i] = opts.Path(f)
	}
	return out
}

// exactMatch finds slug.ext for the known extensions, ignoring case
func exactMatch(slug string, files []string) (string, bool) {
	byName := make(map[string]string, len(files))
	for _, f := range files {
		lower := strings.ToLower(f)
		if _, ok := byName[lower]; !ok {
			byName[lower] = f
		}
	}
	for _, ext := range Extensions {
		if f, ok := byName[slug+"."+ext]; ok {
			return f, true
		}
	}
	return "", false
}
