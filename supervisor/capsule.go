package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pithecene-io/thence/types"
)

// writeCapsule serializes a Capsule to path, creating parent directories
// as needed. Capsules are the only context an implementer/reviewer
// subprocess receives beyond the prompt file (CAPSULE_FILE in the
// subprocess contract).
func writeCapsule(path string, c types.Capsule) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writePrompt(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
