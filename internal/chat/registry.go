package chat

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Registry is the set of connections that finished name negotiation.
// Every method is a short critical section; none performs network I/O.
type Registry struct {
	mu     sync.Mutex
	names  map[*Conn]string // conn -> display name
	byName map[string]*Conn // folded name -> conn
}

func NewRegistry() *Registry {
	return &Registry{
		names:  make(map[*Conn]string),
		byName: make(map[string]*Conn),
	}
}

// NormalizeUsername trims surrounding whitespace and reports whether the
// result has an acceptable length.
func NormalizeUsername(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	return name, n >= 1 && n <= MaxUsernameLength
}

// foldName is the comparison key for usernames. A Caser holds state, so a
// fresh one is built per call.
func foldName(name string) string {
	return cases.Fold().String(name)
}

// Register validates name and binds it to conn.
func (r *Registry) Register(conn *Conn, name string) error {
	name, ok := NormalizeUsername(name)
	if !ok {
		return ErrUsernameInvalid
	}
	key := foldName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[conn]; exists {
		return ErrAlreadyRegistered
	}
	if _, taken := r.byName[key]; taken {
		return ErrUsernameTaken
	}
	r.names[conn] = name
	r.byName[key] = conn
	ConnectedClients.Set(float64(len(r.names)))
	return nil
}

// Unregister removes conn's entry. The second and later calls for the same
// connection report false and change nothing.
func (r *Registry) Unregister(conn *Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.names[conn]
	if !ok {
		return "", false
	}
	delete(r.names, conn)
	delete(r.byName, foldName(name))
	ConnectedClients.Set(float64(len(r.names)))
	return name, true
}

func (r *Registry) FindByName(name string) (*Conn, bool) {
	key := foldName(strings.TrimSpace(name))

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[key]
	return c, ok
}

// Snapshot returns the registered names sorted case-insensitively.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.names))
	for _, name := range r.names {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Slice(names, func(i, j int) bool {
		a, b := foldName(names[i]), foldName(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// recipients copies every registered connection other than exclude.
func (r *Registry) recipients(exclude *Conn) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, 0, len(r.names))
	for c := range r.names {
		if c != exclude {
			out = append(out, c)
		}
	}
	return out
}
