package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"downsort/internal/errors"

	"gopkg.in/yaml.v3"
)

// extensionTable and folderTable decode the extensions/folders mappings
// while keeping their key order, which plain maps would lose.
type extensionTable []extensionEntry

type extensionEntry struct {
	category   string
	extensions []string
}

type folderTable []folderEntry

type folderEntry struct {
	category string
	path     string
}

func (t *extensionTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return errors.NewConfigError("extensions must be a mapping of category to extension list", "extensions", errors.InvalidConfig, nil)
	}
	table := extensionTable{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		list := value.Content[i+1]
		if list.Kind != yaml.SequenceNode {
			return errors.NewConfigError("extension list must be a sequence", name, errors.InvalidConfig, nil)
		}
		var exts []string
		if err := list.Decode(&exts); err != nil {
			return errors.NewConfigError("extension list must contain strings", name, errors.InvalidConfig, err)
		}
		table = append(table, extensionEntry{category: name, extensions: exts})
	}
	*t = table
	return nil
}

func (t extensionTable) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range t {
		list := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, ext := range entry.extensions {
			list.Content = append(list.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: ext})
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: entry.category}, list)
	}
	return node, nil
}

func (t *extensionTable) UnmarshalJSON(data []byte) error {
	table := extensionTable{}
	err := decodeOrderedObject(data, "extensions", func(name string, raw json.RawMessage) error {
		if first := firstByte(raw); first != '[' {
			return errors.NewConfigError("extension list must be a sequence", name, errors.InvalidConfig, nil)
		}
		var exts []string
		if err := json.Unmarshal(raw, &exts); err != nil {
			return errors.NewConfigError("extension list must contain strings", name, errors.InvalidConfig, err)
		}
		table = append(table, extensionEntry{category: name, extensions: exts})
		return nil
	})
	if err != nil {
		return err
	}
	*t = table
	return nil
}

func (t *folderTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return errors.NewConfigError("folders must be a mapping of category to path", "folders", errors.InvalidConfig, nil)
	}
	table := folderTable{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		path := value.Content[i+1]
		if path.Kind != yaml.ScalarNode {
			return errors.NewConfigError("folder must be a path", name, errors.InvalidConfig, nil)
		}
		table = append(table, folderEntry{category: name, path: path.Value})
	}
	*t = table
	return nil
}

func (t folderTable) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range t {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: entry.category},
			&yaml.Node{Kind: yaml.ScalarNode, Value: entry.path},
		)
	}
	return node, nil
}

func (t *folderTable) UnmarshalJSON(data []byte) error {
	table := folderTable{}
	err := decodeOrderedObject(data, "folders", func(name string, raw json.RawMessage) error {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return errors.NewConfigError("folder must be a path", name, errors.InvalidConfig, err)
		}
		table = append(table, folderEntry{category: name, path: path})
		return nil
	})
	if err != nil {
		return err
	}
	*t = table
	return nil
}

// decodeOrderedObject walks a JSON object key by key in document order.
func decodeOrderedObject(data []byte, section string, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.NewConfigError("cannot parse section", section, errors.InvalidConfig, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.NewConfigError(fmt.Sprintf("%s must be an object", section), section, errors.InvalidConfig, nil)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.NewConfigError("cannot parse section", section, errors.InvalidConfig, err)
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return errors.NewConfigError("cannot parse section", section, errors.InvalidConfig, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return errors.NewConfigError("cannot parse section", section, errors.InvalidConfig, err)
	}
	return nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
