package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore 以 JSON 文件持久化凭据，文件权限固定为 0600。
type FileStore struct {
	path string
}

// NewFileStore 创建指向 path 的文件存储。文件与父目录在首次 Save 时创建。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath 返回默认凭据文件位置（~/.llmgate/credentials.json）。
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".llmgate", "credentials.json")
	}
	return filepath.Join(home, ".llmgate", "credentials.json")
}

// Load 读取凭据文件。文件不存在时返回空映射。
func (s *FileStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	creds := map[string]string{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials file: %w", err)
	}
	return creds, nil
}

// Save 覆盖写入凭据文件。
func (s *FileStore) Save(creds map[string]string) error {
	if creds == nil {
		creds = map[string]string{}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}
