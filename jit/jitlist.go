package jit

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Inclusion list
// ---------------------------------------------------------------------------

// InclusionList decides which units are eligible for compilation. The
// identity lookup is a best-effort fast path; the name lookup is
// authoritative whenever the identity lookup is inconclusive. Negative
// identity results are never authoritative, so a pattern added later can
// still admit the code. Implementations must be safe for concurrent reads,
// as batch workers consult the list through the serial compile path.
type InclusionList interface {
	// MatchCode is the identity-keyed lookup. ok is false when the list
	// has no identity-level knowledge of the code.
	MatchCode(code *CodeObject) (eligible, ok bool)

	// MatchName matches a module/qualified-name pair against the list's
	// entries. The result is authoritative.
	MatchName(module, qualname string) bool
}

// List is a line-oriented inclusion list. Two entry forms are accepted:
//
//	module:qualname      name entry, matched by MatchName
//	path/file.py@line    code entry, matched by identity (filename and
//	                     first line) in MatchCode
//
// Blank lines and lines starting with '#' are skipped.
type List struct {
	mu    sync.Mutex
	names map[string]map[string]struct{} // module -> qualnames
	codes map[codeLoc]struct{}
}

type codeLoc struct {
	filename  string
	firstLine int
}

// NewList creates an empty inclusion list.
func NewList() *List {
	l := &List{}
	l.init()
	return l
}

func (l *List) init() {
	l.names = make(map[string]map[string]struct{})
	l.codes = make(map[codeLoc]struct{})
}

// ParseLine adds a single entry to the list.
func (l *List) ParseLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if at := strings.LastIndexByte(line, '@'); at >= 0 {
		n, err := strconv.Atoi(line[at+1:])
		if err != nil {
			return fmt.Errorf("jit: bad code entry %q: %w", line, err)
		}
		l.mu.Lock()
		l.codes[codeLoc{line[:at], n}] = struct{}{}
		l.mu.Unlock()
		return nil
	}
	mod, qual, found := strings.Cut(line, ":")
	if !found {
		return fmt.Errorf("jit: bad list entry %q: want module:qualname", line)
	}
	l.mu.Lock()
	if l.names[mod] == nil {
		l.names[mod] = make(map[string]struct{})
	}
	l.names[mod][qual] = struct{}{}
	l.mu.Unlock()
	return nil
}

// ParseFile reads entries from a file, one per line.
func (l *List) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("jit: cannot read list file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := l.ParseLine(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// MatchCode reports a positive identity match when the code's filename and
// first line appear as a code entry. There are no negative identity
// entries, so a miss is inconclusive.
func (l *List) MatchCode(code *CodeObject) (bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, hit := l.codes[codeLoc{code.Filename, code.FirstLine}]; hit {
		return true, true
	}
	return false, false
}

// MatchName matches exact module:qualname entries.
func (l *List) MatchName(module, qualname string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	quals, ok := l.names[module]
	if !ok {
		return false
	}
	_, ok = quals[qualname]
	return ok
}

// WildcardList extends List with '*' patterns on either side of the colon.
// Supported pattern forms per component: "*", "prefix.*", "*.suffix" and
// exact strings.
type WildcardList struct {
	List

	pmu      sync.Mutex
	patterns []wildcardPattern
}

type wildcardPattern struct {
	module, qualname string
}

// NewWildcardList creates an empty wildcard-capable inclusion list.
func NewWildcardList() *WildcardList {
	w := &WildcardList{}
	w.List.init()
	return w
}

// ParseLine adds an entry, routing patterns containing '*' to the wildcard
// table and everything else to the exact tables. Comments and blanks are
// skipped before routing, so a comment mentioning '*' stays a comment.
func (w *WildcardList) ParseLine(line string) error {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	if strings.Contains(trimmed, "*") {
		mod, qual, found := strings.Cut(trimmed, ":")
		if !found {
			return fmt.Errorf("jit: bad list entry %q: want module:qualname", trimmed)
		}
		w.pmu.Lock()
		w.patterns = append(w.patterns, wildcardPattern{mod, qual})
		w.pmu.Unlock()
		return nil
	}
	return w.List.ParseLine(line)
}

// ParseFile reads entries from a file, one per line.
func (w *WildcardList) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("jit: cannot read list file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := w.ParseLine(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// MatchName tries the exact tables first, then the wildcard patterns.
func (w *WildcardList) MatchName(module, qualname string) bool {
	if w.List.MatchName(module, qualname) {
		return true
	}
	w.pmu.Lock()
	defer w.pmu.Unlock()
	for _, p := range w.patterns {
		if matchComponent(p.module, module) && matchComponent(p.qualname, qualname) {
			return true
		}
	}
	return false
}

func matchComponent(pattern, s string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(s, pattern[1:])
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(s, pattern[:len(pattern)-1])
	default:
		return pattern == s
	}
}
