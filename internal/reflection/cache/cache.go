// Package cache implements the Reflection Cache (C8): a persistent,
// per-repository store of reflections across tasks, with a keyword-based
// similarity lookup.
//
// Grounded directly on
// original_source/src/tarsis/repository/reflection_cache.py (JSON-file-per-
// issue layout under <dir>/<owner>/<repo>/issue_<n>.json, the exact
// similarity-scoring formula, the 30-day/90-day age defaults),
// re-expressed in internal/memory/manager.go's persistence-layering
// style (Config struct, sync.RWMutex-guarded index).
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brightforge/reflexagent/internal/reflection"
)

// Config configures the on-disk cache location.
type Config struct {
	// Dir is the base directory under which <owner>/<repo>/issue_<n>.json
	// files are written (spec.md §6, "Persisted state layout").
	Dir string
}

// Cache is a JSON-file-per-issue reflection store. It satisfies
// reflection.Cache.
type Cache struct {
	mu  sync.Mutex
	dir string
}

func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache: Dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", cfg.Dir, err)
	}
	return &Cache{dir: cfg.Dir}, nil
}

type fileEntry struct {
	Iteration int            `json:"iteration"`
	Trigger   string         `json:"trigger"`
	Context   map[string]any `json:"context"`
	Insight   string         `json:"insight"`
	Timestamp string         `json:"timestamp"`
	Applied   bool           `json:"applied"`
}

type fileDocument struct {
	RepoOwner       string      `json:"repo_owner"`
	RepoName        string      `json:"repo_name"`
	IssueNumber     string      `json:"issue_number"`
	Timestamp       string      `json:"timestamp"`
	ReflectionCount int         `json:"reflection_count"`
	Reflections     []fileEntry `json:"reflections"`
}

func (c *Cache) repoDir(owner, repo string) string {
	return filepath.Join(c.dir, owner, repo)
}

func toFileEntry(e reflection.Entry) fileEntry {
	return fileEntry{
		Iteration: e.Iteration,
		Trigger:   string(e.Trigger),
		Context:   e.Context,
		Insight:   e.Insight,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Applied:   e.Applied,
	}
}

func fromFileEntry(d fileEntry) reflection.Entry {
	ts, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	return reflection.Entry{
		Iteration: d.Iteration,
		Trigger:   reflection.Trigger(d.Trigger),
		Context:   d.Context,
		Insight:   d.Insight,
		Timestamp: ts,
		Applied:   d.Applied,
	}
}

// Save writes an entry for (owner, repo, issue), overwriting any existing
// file (spec.md §4.8).
func (c *Cache) Save(owner, repo, issue string, entries []reflection.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := c.repoDir(owner, repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: save: %w", err)
	}

	doc := fileDocument{
		RepoOwner:       owner,
		RepoName:        repo,
		IssueNumber:     issue,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		ReflectionCount: len(entries),
	}
	for _, e := range entries {
		doc.Reflections = append(doc.Reflections, toFileEntry(e))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: save: marshal: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("issue_%s.json", issue))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache: save: write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("count", len(entries)).Msg("reflection cache: saved")
	return nil
}

// Load reads all entries younger than maxAgeDays across every issue file
// for (owner, repo) and concatenates them (spec.md §4.8).
func (c *Cache) Load(owner, repo string, maxAgeDays int) ([]reflection.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(owner, repo, maxAgeDays)
}

func (c *Cache) load(owner, repo string, maxAgeDays int) ([]reflection.Entry, error) {
	dir := c.repoDir(owner, repo)
	matches, err := filepath.Glob(filepath.Join(dir, "issue_*.json"))
	if err != nil {
		return nil, fmt.Errorf("cache: load: glob: %w", err)
	}

	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	var all []reflection.Entry
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("reflection cache: failed to read file")
			continue
		}
		var doc fileDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("reflection cache: failed to parse file")
			continue
		}
		ts, err := time.Parse(time.RFC3339, doc.Timestamp)
		if err == nil && ts.Before(cutoff) {
			continue
		}
		for _, d := range doc.Reflections {
			all = append(all, fromFileEntry(d))
		}
	}
	return all, nil
}

// Cleanup deletes issue files older than maxAgeDays, returning the count
// removed (spec.md §4.8).
func (c *Cache) Cleanup(owner, repo string, maxAgeDays int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := c.repoDir(owner, repo)
	matches, err := filepath.Glob(filepath.Join(dir, "issue_*.json"))
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup: glob: %w", err)
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	removed := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc fileDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, doc.Timestamp)
		if err == nil && ts.Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats reports cache occupancy for (owner, repo).
type Stats struct {
	CacheExists       bool
	TotalFiles        int
	TotalReflections  int
	CachePath         string
}

func (c *Cache) Stats(owner, repo string) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := c.repoDir(owner, repo)
	matches, _ := filepath.Glob(filepath.Join(dir, "issue_*.json"))
	if len(matches) == 0 {
		return Stats{CacheExists: false}
	}

	total := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc fileDocument
		if err := json.Unmarshal(data, &doc); err == nil {
			total += doc.ReflectionCount
		}
	}
	return Stats{CacheExists: true, TotalFiles: len(matches), TotalReflections: total, CachePath: dir}
}

// similarityKeywords and toolKeywords are the fixed lists from spec.md
// §4.8's similarity rule.
var similarityKeywords = []string{
	"test", "validation", "import", "syntax", "type", "error",
	"file", "missing", "not found", "failed", "exception",
}

var toolKeywords = []string{
	"modify_file", "commit_changes", "run_validation",
	"create_branch", "create_pull_request", "read_file",
}

// Similar scores every loaded record against queryContext and returns the
// top `limit` with positive score (spec.md §4.8).
func (c *Cache) Similar(owner, repo string, queryContext map[string]any, limit int) ([]reflection.Entry, error) {
	c.mu.Lock()
	all, err := c.load(owner, repo, 30)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	type scored struct {
		score float64
		entry reflection.Entry
	}
	queryText := strings.ToLower(fmt.Sprintf("%v", queryContext))
	queryFiles := stringSetFrom(queryContext["files_modified"])

	var results []scored
	for _, e := range all {
		score := 0.0
		if t, ok := queryContext["trigger"].(string); ok && t == string(e.Trigger) {
			score += 1.0
		}
		insightLower := strings.ToLower(e.Insight)
		for _, kw := range similarityKeywords {
			if strings.Contains(queryText, kw) && strings.Contains(insightLower, kw) {
				score += 0.5
			}
		}
		for _, kw := range toolKeywords {
			if strings.Contains(queryText, kw) && strings.Contains(insightLower, kw) {
				score += 0.3
			}
		}
		if len(queryFiles) > 0 {
			var recFiles map[string]bool
			if e.Context != nil {
				recFiles = stringSetFrom(e.Context["files_modified"])
			}
			overlap := 0
			for f := range queryFiles {
				if recFiles[f] {
					overlap++
				}
			}
			if overlap > 0 {
				score += float64(overlap) * 0.2
			}
		}
		if score > 0 {
			results = append(results, scored{score, e})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	out := make([]reflection.Entry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}
	return out, nil
}

func stringSetFrom(v any) map[string]bool {
	out := map[string]bool{}
	switch vv := v.(type) {
	case []string:
		for _, s := range vv {
			out[s] = true
		}
	case []any:
		for _, s := range vv {
			if str, ok := s.(string); ok {
				out[str] = true
			}
		}
	}
	return out
}
