// Package crypt implements LUKS operations, the process-global mapper
// cache, and crypttab/kernel-cmdline synthesis.
package crypt

import (
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

// MapperCache is the process-wide mapping of underlying node to
// /dev/mapper/<label> for every LUKS device opened during an install run.
// It is the only mutable global in this codebase: mapper devices outlive
// any single function scope and must be closed regardless of which module
// opened them.
type MapperCache struct {
	mu    sync.RWMutex
	nodes map[string]string
}

// globalMapperCache is the process-wide singleton bound to install-run
// teardown.
var globalMapperCache = NewMapperCache()

// GlobalMapperCache returns the process-wide cache.
func GlobalMapperCache() *MapperCache { return globalMapperCache }

func NewMapperCache() *MapperCache {
	return &MapperCache{nodes: make(map[string]string)}
}

// Get returns the mapper device path for node, if already opened.
func (c *MapperCache) Get(node string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	path, ok := c.nodes[node]
	return path, ok
}

// Insert records that node is now open at mapperPath.
func (c *MapperCache) Insert(node, mapperPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[node] = mapperPath
}

// Clear closes every mapped device and drains the cache. Close failures are
// logged, not returned: losing a cleanup error must not mask whatever
// install failure is already in flight.
func (c *MapperCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for node, mapperPath := range c.nodes {
		label := labelFromMapperPath(mapperPath)
		if err := closeMapper(label); err != nil {
			logrus.Warnf("mapper cache: failed to close %s (%s): %v", label, node, err)
		}
		delete(c.nodes, node)
	}
}

// Len reports the number of open mapper entries; used by tests to assert
// the cache is fully drained after Clear.
func (c *MapperCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

func labelFromMapperPath(mapperPath string) string {
	const prefix = "/dev/mapper/"
	if len(mapperPath) > len(prefix) && mapperPath[:len(prefix)] == prefix {
		return mapperPath[len(prefix):]
	}
	return mapperPath
}

// execCommand is overridden in tests.
var execCommand = exec.Command
