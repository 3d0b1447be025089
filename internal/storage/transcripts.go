package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// SessionRecord represents a sessionRecord.
type SessionRecord struct {
	SessionID  string `json:"session_id"`
	SiteID     string `json:"site_id"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
	CustomData string `json:"custom_data,omitempty"`
	EndedAt    string `json:"ended_at"`
}

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// AppendRecord appends one ended-session record to the site's transcript
// file.
func AppendRecord(baseDir string, record SessionRecord) error {
	path, err := sitePath(baseDir, record.SiteID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if record.EndedAt == "" {
		record.EndedAt = time.Now().Format(time.RFC3339)
	}
	records, err := readRecords(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	records = append(records, record)
	return writeRecords(path, records)
}

// ListRecords returns the site's ended-session records, newest first.
func ListRecords(baseDir string, siteID string) ([]SessionRecord, error) {
	path, err := sitePath(baseDir, siteID)
	if err != nil {
		return nil, err
	}
	records, err := readRecords(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionRecord{}, nil
		}
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EndedAt > records[j].EndedAt
	})
	return records, nil
}

// ListSites returns the site ids that have a transcript file, sorted.
func ListSites(baseDir string) []string {
	sites := []string{}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return sites
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sites = append(sites, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(sites)
	return sites
}

func sitePath(baseDir string, siteID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(siteID) {
		return "", errors.New("invalid site id")
	}
	return filepath.Join(baseDir, siteID+".json"), nil
}

func readRecords(path string) ([]SessionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func writeRecords(path string, records []SessionRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
