//go:build property

package build

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type upperEngine struct{}

func (upperEngine) ProcessMarkup(markup string) (string, error) { return strings.ToUpper(markup), nil }

// TestProcessDirectoryProperties checks that the worker count never changes
// what a build produces.
func TestProcessDirectoryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234) // For reproducible results
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("every matching file is processed once whatever the worker count", prop.ForAll(
		func(names []string, workers int) bool {
			root := t.TempDir()
			src := filepath.Join(root, "src")
			dest := filepath.Join(root, "dist")

			want := map[string]bool{}
			for i, name := range names {
				rel := fmt.Sprintf("d%d/%s-%d.html", i%3, name, i)
				writeFile(t, filepath.Join(src, filepath.FromSlash(rel)), "<p>"+name+"</p>")
				want[rel] = true
				writeFile(t, filepath.Join(src, fmt.Sprintf("skip-%d.txt", i)), name)
			}

			p := NewProcessor(upperEngine{}, Options{Workers: workers})
			result, err := p.ProcessDirectory(context.Background(), nil, src, dest)
			if err != nil || len(result.Processed) != len(want) || len(result.Failed) != 0 {
				return false
			}
			for _, rel := range result.Processed {
				if !want[rel] {
					return false
				}
				out := readFile(t, filepath.Join(dest, filepath.FromSlash(rel)))
				if out != strings.ToUpper(out) || !strings.HasPrefix(out, "<P>") {
					return false
				}
			}

			return true
		},
		gen.SliceOfN(12, gen.Identifier()),
		gen.IntRange(1, 8),
	))

	properties.Property("an html file matches the default patterns at any depth", prop.ForAll(
		func(dirs []string, name string) bool {
			rel := strings.Join(append(dirs, name+".html"), "/")

			return MatchPatterns(nil, rel) && !MatchPatterns(nil, rel+".bak")
		},
		gen.SliceOfN(3, gen.Identifier()),
		gen.Identifier(),
	))

	properties.Property("content hash depends on every part", prop.ForAll(
		func(a, b string) bool {
			return ContentHash([]byte(a), []byte(b)) == ContentHash([]byte(a), []byte(b)) &&
				(a == b || ContentHash([]byte(a)) != ContentHash([]byte(b)))
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
