package godb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// tableInfo is the catalog's record of one registered table: its backing
// file, and the stable table id that file's pages carry.
type tableInfo struct {
	name string
	id   int
	file DBFile
}

// Catalog maps table names to their backing DBFile and caches the
// TableStats the optimiser needs for selectivity and cost estimation.
// It is the engine's external name registry: the buffer pool and heap
// files never consult it; the parser, operator-construction code, and the
// write-ahead log (to turn a logged table id back into its file) do.
type Catalog struct {
	mu       sync.Mutex
	rootDir  string
	bp       *BufferPool
	byName   map[string]*tableInfo
	byID     map[int]*tableInfo
	statsMu  sync.Mutex
	statsTab map[string]*TableStats
}

// NewCatalog parses catalogFile -- one table per line, "name (field type,
// field type, ...)" -- opening each table's backing file (named
// <rootDir>/<name>.dat) as a HeapFile registered against bp.
func NewCatalog(catalogFile string, bp *BufferPool, rootDir string) (*Catalog, error) {
	c := &Catalog{
		rootDir:  rootDir,
		bp:       bp,
		byName:   make(map[string]*tableInfo),
		byID:     make(map[int]*tableInfo),
		statsTab: make(map[string]*TableStats),
	}
	if catalogFile == "" {
		return c, nil
	}
	if err := c.parseCatalogFile(catalogFile); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) parseCatalogFile(catalogFile string) error {
	f, err := os.Open(catalogFile)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		open := strings.Index(line, "(")
		close := strings.LastIndex(line, ")")
		if open < 0 || close < 0 || close < open {
			return GoDBError{ParseError, fmt.Sprintf("malformed catalog line: %s", line)}
		}
		name := strings.TrimSpace(line[:open])
		fieldsStr := line[open+1 : close]

		var types []DBType
		var names []string
		for _, part := range strings.Split(fieldsStr, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			toks := strings.Fields(part)
			if len(toks) != 2 {
				return GoDBError{ParseError, fmt.Sprintf("malformed field spec: %s", part)}
			}
			names = append(names, toks[0])
			switch strings.ToLower(toks[1]) {
			case "int":
				types = append(types, IntType)
			case "string":
				types = append(types, StringType)
			default:
				return GoDBError{ParseError, fmt.Sprintf("unknown field type: %s", toks[1])}
			}
		}
		td, err := NewTupleDesc(types, names)
		if err != nil {
			return err
		}
		if err := c.addTable(name, filepath.Join(c.rootDir, name+".dat"), td); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// addTable registers name against a newly opened HeapFile at path.
func (c *Catalog) addTable(name string, path string, td *TupleDesc) error {
	hf, err := NewHeapFile(path, td, c.bp)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ti := &tableInfo{name: name, id: hf.TableID(), file: hf}
	c.byName[name] = ti
	c.byID[ti.id] = ti
	return nil
}

// GetTable looks up a table's backing file by name.
func (c *Catalog) GetTable(name string) (DBFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ti, ok := c.byName[name]
	if !ok {
		return nil, GoDBError{TupleNotFoundError, fmt.Sprintf("no table named %s", name)}
	}
	return ti.file, nil
}

// GetDBFileForTableID resolves the DBFile whose pages carry id -- used by
// the write-ahead log to reconstruct pages it logged before images of.
func (c *Catalog) GetDBFileForTableID(id int) (DBFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ti, ok := c.byID[id]
	if !ok {
		return nil, GoDBError{TupleNotFoundError, fmt.Sprintf("no table registered with id %d", id)}
	}
	return ti.file, nil
}

// TableNames returns every registered table's name.
func (c *Catalog) TableNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	return names
}

// ComputeTableStats (re)builds and caches the TableStats for every
// registered table. It is the process-wide stats registry, keyed by table
// name: each call recomputes every table's stats, and GetTableStats
// serves the cached result until the next call.
func (c *Catalog) ComputeTableStats() error {
	c.mu.Lock()
	tables := make([]*tableInfo, 0, len(c.byName))
	for _, ti := range c.byName {
		tables = append(tables, ti)
	}
	c.mu.Unlock()

	for _, ti := range tables {
		stats, err := ComputeTableStats(c.bp, ti.file)
		if err != nil {
			return err
		}
		c.statsMu.Lock()
		c.statsTab[ti.name] = stats
		c.statsMu.Unlock()
	}
	return nil
}

// GetTableStats returns the cached TableStats for name, if any have been
// computed.
func (c *Catalog) GetTableStats(name string) (*TableStats, bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s, ok := c.statsTab[name]
	return s, ok
}
