package request

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"gopkg.in/yaml.v3"
)

// Errors specific to parsing request files.
var (
	ErrMissingDoc        = errors.New("empty document")
	ErrTooManyDocs       = errors.New("only 1 document is allowed, ignoring all others")
	ErrNotMap            = errors.New("expected a map")
	ErrNotString         = errors.New("expected a string")
	ErrNotStringOrList   = errors.New("expected a string or a list of strings")
	ErrUnknownField      = errors.New("unknown field")
	ErrMissingRepos      = errors.New("missing repositories")
	ErrEmptyJobs         = errors.New("repository has no jobs")
	ErrEmptyGlobs        = errors.New("job has no artifact globs")
	ErrEmptyGlob         = errors.New("empty artifact glob")
	ErrInvalidGlob       = errors.New("invalid artifact glob")
	ErrInvalidRepoName   = errors.New(`invalid repository name, expected "name" or "org/name"`)
	ErrDuplicateRepoName = errors.New("duplicate repository")
	ErrDuplicateJobName  = errors.New("duplicate job")
)

const (
	fieldOrganization = "organization"
	fieldRepositories = "repositories"
)

// ParseFile parses the request file at the given path.
// Multiple errors may be returned, one for each validation or parsing error.
func ParseFile(name string) (File, errutil.Slice) {
	file, err := os.Open(name)
	if err != nil {
		return File{}, errutil.Slice{err}
	}
	defer file.Close()
	return Parse(file)
}

// Parse parses YAML content as a request file.
// Multiple errors may be returned, one for each validation or parsing error.
func Parse(reader io.Reader) (File, errutil.Slice) {
	var errs errutil.Slice
	root, err := decodeFirstDoc(reader)
	errs.Add(err)
	if root == nil {
		return File{}, errs
	}
	f, visitErrs := visitRoot(root)
	errs.Add(visitErrs...)
	errutil.SortByPos(errs)
	return f, errs
}

func decodeFirstDoc(reader io.Reader) (*yaml.Node, error) {
	dec := yaml.NewDecoder(reader)
	var doc yaml.Node
	err := dec.Decode(&doc)
	if err == io.EOF {
		return nil, ErrMissingDoc
	}
	if err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrMissingDoc
	}
	body := unwrapNodeRec(doc.Content[0])
	var unusedNode yaml.Node
	if err := dec.Decode(&unusedNode); err != io.EOF {
		return body, ErrTooManyDocs
	}
	return body, nil
}

func unwrapNodeRec(node *yaml.Node) *yaml.Node {
	for node.Alias != nil {
		node = node.Alias
	}
	for i, child := range node.Content {
		node.Content[i] = unwrapNodeRec(child)
	}
	return node
}

func visitRoot(node *yaml.Node) (f File, errs errutil.Slice) {
	if node.Kind != yaml.MappingNode {
		errs.Add(wrapPosErr(ErrNotMap, node))
		return
	}
	var sawRepos bool
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case fieldOrganization:
			org, err := visitString(value)
			if err != nil {
				errs.Add(errutil.Scope(err, fieldOrganization))
				continue
			}
			f.Organization = org
		case fieldRepositories:
			sawRepos = true
			var repoErrs errutil.Slice
			f.Repositories, repoErrs = visitRepositories(value)
			errs.Add(errutil.ScopeSlice(repoErrs, fieldRepositories)...)
		default:
			errs.Add(wrapPosErr(fmt.Errorf("%w: %q", ErrUnknownField, key.Value), key))
		}
	}
	if !sawRepos || (len(f.Repositories) == 0 && len(errs) == 0) {
		errs.Add(wrapPosErr(ErrMissingRepos, node))
	}
	return
}

func visitRepositories(node *yaml.Node) (repos []Repository, errs errutil.Slice) {
	if node.Kind != yaml.MappingNode {
		errs.Add(wrapPosErr(ErrNotMap, node))
		return
	}
	seen := make(map[string]struct{})
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		repo, err := parseRepo(key.Value)
		if err != nil {
			errs.Add(errutil.Scope(wrapPosErr(err, key), key.Value))
			continue
		}
		if _, ok := seen[repo.String()]; ok {
			errs.Add(errutil.Scope(wrapPosErr(
				fmt.Errorf("%w: %q", ErrDuplicateRepoName, repo.String()), key), key.Value))
			continue
		}
		seen[repo.String()] = struct{}{}
		jobs, jobErrs := visitJobs(value)
		errs.Add(errutil.ScopeSlice(jobErrs, key.Value)...)
		if len(jobErrs) > 0 {
			continue
		}
		repos = append(repos, Repository{Repo: repo, Jobs: jobs})
	}
	return
}

func visitJobs(node *yaml.Node) (jobs map[string][]string, errs errutil.Slice) {
	if node.Kind != yaml.MappingNode {
		errs.Add(wrapPosErr(ErrNotMap, node))
		return
	}
	if len(node.Content) == 0 {
		errs.Add(wrapPosErr(ErrEmptyJobs, node))
		return
	}
	jobs = make(map[string][]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if _, ok := jobs[key.Value]; ok {
			errs.Add(errutil.Scope(wrapPosErr(
				fmt.Errorf("%w: %q", ErrDuplicateJobName, key.Value), key), key.Value))
			continue
		}
		globs, globErrs := visitGlobs(value)
		errs.Add(errutil.ScopeSlice(globErrs, key.Value)...)
		jobs[key.Value] = globs
	}
	return
}

func visitGlobs(node *yaml.Node) (globs []string, errs errutil.Slice) {
	var items []*yaml.Node
	switch node.Kind {
	case yaml.ScalarNode:
		items = []*yaml.Node{node}
	case yaml.SequenceNode:
		items = node.Content
	default:
		errs.Add(wrapPosErr(ErrNotStringOrList, node))
		return
	}
	if len(items) == 0 {
		errs.Add(wrapPosErr(ErrEmptyGlobs, node))
		return
	}
	for _, item := range items {
		glob, err := visitString(item)
		if err != nil {
			errs.Add(err)
			continue
		}
		if err := validateGlob(glob); err != nil {
			errs.Add(wrapPosErr(err, item))
			continue
		}
		globs = append(globs, glob)
	}
	return
}

func visitString(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return "", wrapPosErr(ErrNotString, node)
	}
	return node.Value, nil
}

// validateGlob checks a pattern against the fnmatch syntax used when
// matching artifacts: "*", "?", backslash escapes, and bracket expressions
// that may be negated with "!" or "^" and may start with a literal "]".
//
// fnmatch itself falls back to matching a malformed pattern literally, which
// would silently match nothing.
func validateGlob(glob string) error {
	if strings.TrimSpace(glob) == "" {
		return ErrEmptyGlob
	}
	for i := 0; i < len(glob); i++ {
		switch glob[i] {
		case '\\':
			if i+1 >= len(glob) {
				return fmt.Errorf("%w: %q: trailing backslash", ErrInvalidGlob, glob)
			}
			i++
		case '[':
			end, ok := bracketEnd(glob, i+1)
			if !ok {
				return fmt.Errorf("%w: %q: unterminated bracket expression", ErrInvalidGlob, glob)
			}
			i = end
		}
	}
	return nil
}

// bracketEnd returns the index of the "]" closing the bracket expression
// whose content starts at index start.
func bracketEnd(glob string, start int) (int, bool) {
	i := start
	if i < len(glob) && (glob[i] == '!' || glob[i] == '^') {
		i++
	}
	if i < len(glob) && glob[i] == ']' {
		i++
	}
	for ; i < len(glob); i++ {
		switch glob[i] {
		case '\\':
			i++
		case ']':
			return i, true
		}
	}
	return 0, false
}

func parseRepo(s string) (circleci.Repo, error) {
	org, name, hasOrg := strings.Cut(s, "/")
	if !hasOrg {
		name, org = org, ""
	}
	if name == "" || (hasOrg && org == "") || strings.Contains(name, "/") {
		return circleci.Repo{}, fmt.Errorf("%w: %q", ErrInvalidRepoName, s)
	}
	return circleci.Repo{Org: org, Name: name}, nil
}

func wrapPosErr(err error, node *yaml.Node) error {
	return errutil.NewPos(err, node.Line, node.Column)
}
