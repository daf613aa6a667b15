// ABOUTME: Reference maps written alongside the index: asset id and case id lookups
// ABOUTME: Keys are serialized as strings so the files stay plain JSON objects
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	AssetMapFile = "asset_id_map.json"
	CaseMapFile  = "case_id_map.json"
)

// WriteReferenceMaps persists the asset and case lookup tables under dir
func WriteReferenceMaps(dir string, assetMap map[int]string, caseMap map[int]string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating reference dir: %w", err)
	}
	if err := writeIntKeyMap(filepath.Join(dir, AssetMapFile), assetMap); err != nil {
		return err
	}
	return writeIntKeyMap(filepath.Join(dir, CaseMapFile), caseMap)
}

// LoadAssetIDMap reads asset_id_map.json: asset id -> "case|||asset"
func LoadAssetIDMap(dir string) (map[int]string, error) {
	return readIntKeyMap(filepath.Join(dir, AssetMapFile))
}

// LoadCaseIDMap reads case_id_map.json: case id -> case name
func LoadCaseIDMap(dir string) (map[int]string, error) {
	return readIntKeyMap(filepath.Join(dir, CaseMapFile))
}

func writeIntKeyMap(path string, m map[int]string) error {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readIntKeyMap(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: bad key %q", filepath.Base(path), k)
		}
		out[id] = v
	}
	return out, nil
}
