// internal/gitlog/parser.go
package gitlog

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	custom_errors "gitledger/internal/errors"
	"gitledger/internal/model"
)

// PrettyFormat is the header format the parser expects, one line per commit.
const PrettyFormat = "%H#%aI#%cI#%aN#%aE#%cN#%cE"

// ParentsFormat lists a commit hash followed by its parent hashes.
const ParentsFormat = "%H %P"

const (
	headerSeparator = "#"
	headerFields    = 7
	numstatFields   = 3
	binaryStat      = "-"
	maxLineSize     = 1024 * 1024
)

var commitHash = regexp.MustCompile(`^(?:[0-9a-f]{40}|[0-9a-f]{64})$`)

type state int

const (
	awaitingHeader state = iota
	accumulatingFiles
	finished
)

func (s state) String() string {
	switch s {
	case awaitingHeader:
		return "awaiting-header"
	case accumulatingFiles:
		return "accumulating-files"
	default:
		return "finished"
	}
}

// Parser turns `git log --pretty=format:PrettyFormat --numstat` output into commits.
// It is fed one line at a time and must be finished to flush the last commit.
type Parser struct {
	state   state
	line    int
	current *model.Commit
	commits []model.Commit
}

// NewParser returns a Parser waiting for its first header.
func NewParser() *Parser {
	return &Parser{state: awaitingHeader}
}

// Parse parses a complete log output.
func Parse(raw string) ([]model.Commit, error) {
	return ParseReader(strings.NewReader(raw))
}

// ParseReader parses log output read from r until EOF.
func ParseReader(r io.Reader) ([]model.Commit, error) {
	p := NewParser()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := p.Feed(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading git log output: %w", err)
	}
	return p.Finish(), nil
}

// Feed consumes one line of output, without its line terminator.
func (p *Parser) Feed(line string) error {
	if p.state == finished {
		return fmt.Errorf("gitlog: feed after finish")
	}
	p.line++
	line = strings.TrimSuffix(line, "\r")

	switch {
	case isNumstat(line):
		if p.state != accumulatingFiles {
			return p.malformed(line, "file stats without a commit header")
		}
		return p.addNumstat(line)

	case isHeader(line):
		return p.startCommit(line)

	case strings.TrimSpace(line) == "":
		p.finalize()
		return nil

	default:
		if p.state != accumulatingFiles {
			return p.malformed(line, "expected a commit header")
		}
		p.addFile(line, "", 0, 0)
		return nil
	}
}

// Finish flushes any pending commit and returns everything parsed so far with file counts set.
func (p *Parser) Finish() []model.Commit {
	p.finalize()
	p.state = finished
	for i := range p.commits {
		p.commits[i].FileCount = len(p.commits[i].Files)
	}
	return p.commits
}

func (p *Parser) startCommit(line string) error {
	fields := strings.SplitN(line, headerSeparator, headerFields)
	if len(fields) < headerFields {
		return p.malformed(line, fmt.Sprintf("header has %d fields, want %d", len(fields), headerFields))
	}

	authorWhen, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return p.malformed(line, "invalid author date")
	}
	committerWhen, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return p.malformed(line, "invalid committer date")
	}

	p.finalize()
	p.current = &model.Commit{
		Hash:           fields[0],
		AuthorWhen:     authorWhen,
		CommitterWhen:  committerWhen,
		AuthorName:     fields[3],
		AuthorEmail:    fields[4],
		CommitterName:  fields[5],
		CommitterEmail: fields[6],
		CycleTime:      committerWhen.Unix() - authorWhen.Unix(),
		Files:          []model.FileChange{},
	}
	p.state = accumulatingFiles
	return nil
}

func (p *Parser) addNumstat(line string) error {
	fields := strings.SplitN(line, "\t", numstatFields)
	additions, err := parseStat(fields[0])
	if err != nil {
		return p.malformed(line, "invalid additions count")
	}
	deletions, err := parseStat(fields[1])
	if err != nil {
		return p.malformed(line, "invalid deletions count")
	}
	current, change := ResolveRename(unquotePath(fields[2]))
	p.addFile(current, change, additions, deletions)
	return nil
}

func (p *Parser) addFile(filePath, change string, additions, deletions int) {
	p.current.Files = append(p.current.Files, model.FileChange{
		CommitHash:    p.current.Hash,
		FilePath:      filePath,
		PathChange:    change,
		Additions:     additions,
		Deletions:     deletions,
		CommitterWhen: p.current.CommitterWhen,
	})
}

func (p *Parser) finalize() {
	if p.current != nil {
		p.commits = append(p.commits, *p.current)
		p.current = nil
	}
	p.state = awaitingHeader
}

func (p *Parser) malformed(line, reason string) error {
	return &custom_errors.MalformedLogRecordError{Line: p.line, Text: line, Reason: reason}
}

// unquotePath undoes git's C-style quoting, which it still applies to paths holding
// a double quote, a backslash or a control character. A field that does not unquote is kept as is.
func unquotePath(field string) string {
	if len(field) < 2 || field[0] != '"' || field[len(field)-1] != '"' {
		return field
	}
	if unquoted, err := strconv.Unquote(field); err == nil {
		return unquoted
	}
	return field
}

func isNumstat(line string) bool {
	return strings.Count(line, "\t") == numstatFields-1
}

func isHeader(line string) bool {
	hash, _, found := strings.Cut(line, headerSeparator)
	return found && commitHash.MatchString(hash)
}

func parseStat(s string) (int, error) {
	if s == binaryStat {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// ParseParents parses `git log --format=ParentsFormat` output into a map of
// commit hash to number of parents.
func ParseParents(raw string) map[string]int {
	counts := make(map[string]int)
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		counts[fields[0]] = len(fields) - 1
	}
	return counts
}
