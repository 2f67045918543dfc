package client

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint addresses a dependency by api name or by numeric index.
type Endpoint struct {
	name    string
	index   int
	byIndex bool
}

// Named addresses the dependency declared with the given api name.
// A leading "/" is optional.
func Named(name string) Endpoint {
	return Endpoint{name: name}
}

// Index addresses a dependency by its position in Config.Dependencies.
func Index(fnIndex int) Endpoint {
	return Endpoint{index: fnIndex, byIndex: true}
}

// ParseEndpoint interprets a purely numeric string as an index and anything else as a name.
func ParseEndpoint(s string) Endpoint {
	if i, err := strconv.Atoi(s); err == nil {
		return Index(i)
	}
	return Named(s)
}

func (e Endpoint) String() string {
	if e.byIndex {
		return strconv.Itoa(e.index)
	}
	return "/" + trimName(e.name)
}

// resolve returns the dependency index and the endpoint label events carry.
// The label is empty for an unnamed dependency; Submit labels those with
// the index instead.
func (e Endpoint) resolve(cfg *Config, apiMap map[string]int) (int, string, error) {
	if e.byIndex {
		dep, ok := cfg.Dependency(e.index)
		if !ok {
			return e.index, "", fmt.Errorf("there is no dependency with index %d", e.index)
		}
		if dep.APIName != "" {
			return e.index, "/" + trimName(dep.APIName), nil
		}
		return e.index, "", nil
	}
	name := trimName(e.name)
	idx, ok := apiMap[name]
	if !ok {
		return -1, "/" + name, fmt.Errorf("there is no endpoint matching %q", "/"+name)
	}
	return idx, "/" + name, nil
}

func trimName(name string) string {
	return strings.TrimPrefix(name, "/")
}

// MapNamesToIDs maps every named dependency to its index.
// Names are stored without a leading "/".
func MapNamesToIDs(deps []Dependency) map[string]int {
	ids := make(map[string]int, len(deps))
	for i, dep := range deps {
		if dep.APIName != "" {
			ids[trimName(dep.APIName)] = i
		}
	}
	return ids
}

// SkipQueue reports whether calls to the dependency at index bypass the
// queue. A dependency's own queue flag overrides cfg.EnableQueue; an
// unknown dependency never waits on the queue.
func SkipQueue(index int, cfg *Config) bool {
	dep, ok := cfg.Dependency(index)
	if !ok {
		return true
	}
	queue := cfg.EnableQueue
	if dep.Queue != nil {
		queue = *dep.Queue
	}
	return !queue
}
