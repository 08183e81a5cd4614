package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	cyberphone "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// StampHash fingerprints every setting that can change a test's outcome.
// The document is canonicalized before hashing so that field order and
// number formatting never change the digest.
func (c *Config) StampHash() (string, error) {
	doc := map[string]any{
		"stage_id":          c.StageID,
		"mode":              c.Mode.String(),
		"compare_mode":      c.CompareMode,
		"target":            c.Target,
		"host":              c.Host,
		"host_rustcflags":   c.HostRustcFlags,
		"target_rustcflags": c.TargetRustcFlags,
		"rustc_path":        c.RustcPath,
	}
	switch c.Mode {
	case DebugInfoGdb:
		doc["gdb"] = c.GDB
	case DebugInfoLldb:
		doc["pythonpath"] = os.Getenv("PYTHONPATH")
		doc["lldb_python_dir"] = c.LLDBPythonDir
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode stamp fingerprint: %w", err)
	}
	canon, err := cyberphone.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize stamp fingerprint: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(canon)), nil
}
