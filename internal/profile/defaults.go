package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var defaultProfiles = map[string]string{
	"notes.yaml": `id: notes
name: Markdown notes
dir: ~/
extensions:
  - md
  - markdown
`,
	"dotfiles.yaml": `id: dotfiles
name: Config files
dir: ~/.config
extensions:
  - yaml
  - yml
  - toml
  - json
`,
}

// ensureDefaults seeds the profile directory on first run. A directory that
// already contains any YAML file is left untouched.
func ensureDefaults(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read profile dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			return nil
		}
	}

	for file, content := range defaultProfiles {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write default %q: %w", path, err)
		}
	}

	return nil
}
