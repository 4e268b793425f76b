package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"security-content/internal/builder"
	"security-content/internal/content"
)

// Corpus holds the related objects every detection is enriched with, plus the
// detection files still to be built.
type Corpus struct {
	Deployments []*content.Deployment
	Macros      []*content.Macro
	Playbooks   []*content.Playbook
	Baselines   []*content.Baseline
	UnitTests   []*content.UnitTest

	DetectionPaths []string
}

// TestsFor returns the unit tests of the named detection. A unit test belongs to
// a detection when it is named after it or one of its cases runs the detection's file.
func (c *Corpus) TestsFor(detection string) []*content.UnitTest {
	normalized := content.NormalizeName(detection)

	var out []*content.UnitTest
	for _, ut := range c.UnitTests {
		name := strings.TrimSpace(strings.TrimSuffix(ut.Name, "Unit Test"))
		if strings.EqualFold(name, detection) {
			out = append(out, ut)
			continue
		}
		for _, tc := range ut.Tests {
			base := filepath.Base(tc.File)
			if strings.TrimSuffix(base, filepath.Ext(base)) == normalized {
				out = append(out, ut)
				break
			}
		}
	}
	return out
}

// CollectFiles returns the YAML files under dir in lexical order.
func CollectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadCorpus builds every related object under root, one directory per kind.
// Missing kind directories are skipped. Objects that fail to build are reported
// as failures and left out of the corpus.
func LoadCorpus(root string, opts ...builder.Option) (*Corpus, []Failure, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, &content.NotFoundError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &content.NotFoundError{Path: root, Err: errors.New("content root is not a directory")}
	}

	b := builder.NewBasicBuilder(opts...)
	corpus := &Corpus{}
	var failures []Failure

	for _, kind := range content.Kinds {
		files, err := kindFiles(root, kind)
		if err != nil {
			return nil, nil, err
		}
		if kind == content.KindDetection {
			corpus.DetectionPaths = files
			continue
		}

		for _, path := range files {
			obj, err := b.Build(path, kind)
			if err != nil {
				failures = append(failures, Failure{Kind: kind, Path: path, Err: err})
				continue
			}
			switch v := obj.(type) {
			case *content.Deployment:
				corpus.Deployments = append(corpus.Deployments, v)
			case *content.Macro:
				corpus.Macros = append(corpus.Macros, v)
			case *content.Playbook:
				corpus.Playbooks = append(corpus.Playbooks, v)
			case *content.Baseline:
				corpus.Baselines = append(corpus.Baselines, v)
			case *content.UnitTest:
				corpus.UnitTests = append(corpus.UnitTests, v)
			}
		}
	}

	return corpus, failures, nil
}

func kindFiles(root string, kind content.Kind) ([]string, error) {
	dir := filepath.Join(root, kind.Dir())
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return CollectFiles(dir)
}
