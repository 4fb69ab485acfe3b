package settings

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads one namespace of a Pulumi.<stack>.yaml file. Secure
// values are not decrypted; none of the keys Load reads are secrets.
type FileSource struct {
	namespace string
	values    map[string]interface{}
}

type stackFile struct {
	Config map[string]interface{} `yaml:"config"`
}

// ReadStackFile parses path and exposes the keys under namespace.
func ReadStackFile(path, namespace string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack config: %w", err)
	}
	return ParseStackFile(data, namespace)
}

func ParseStackFile(data []byte, namespace string) (*FileSource, error) {
	var f stackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stack config: %w", err)
	}
	return &FileSource{namespace: namespace, values: f.Config}, nil
}

// Get returns scalars as written and objects as JSON, like Pulumi does.
func (s *FileSource) Get(key string) string {
	v, ok := s.values[s.namespace+":"+key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func (s *FileSource) GetObject(key string, output interface{}) error {
	v := s.Get(key)
	if v == "" {
		return nil
	}
	return json.Unmarshal([]byte(v), output)
}
