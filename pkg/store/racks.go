package store

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/embedded"
)

// RacksPath 嵌入的演示货架数据
const RacksPath = "data/racks.yaml"

// racksFile racks.yaml 的文件结构
type racksFile struct {
	Racks []backend.Rack `yaml:"racks"`
}

// ParseRacks 解析货架 YAML 并校验
func ParseRacks(data []byte) ([]backend.Rack, error) {
	var f racksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse racks YAML: %w", err)
	}
	seen := map[string]bool{}
	for _, r := range f.Racks {
		if r.ID == "" {
			return nil, fmt.Errorf("rack %q has empty id", r.Name)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rack id %q", r.ID)
		}
		seen[r.ID] = true
		for i, st := range r.Stages {
			if st.Number != i+1 {
				return nil, fmt.Errorf("rack %q: stage[%d] has number %d, expected %d", r.ID, i, st.Number, i+1)
			}
		}
	}
	return f.Racks, nil
}

// LoadEmbeddedRacks 从嵌入资源加载演示货架
func LoadEmbeddedRacks() ([]backend.Rack, error) {
	data, err := embedded.ReadFile(RacksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", RacksPath, err)
	}
	return ParseRacks(data)
}

// PutRack 保存货架定义（覆盖）
func (s *Store) PutRack(rack backend.Rack) error {
	if rack.ID == "" {
		return fmt.Errorf("%w: rack id is empty", ErrInvalidArgument)
	}
	data, err := yaml.Marshal(rack)
	if err != nil {
		return fmt.Errorf("failed to marshal rack %q: %w", rack.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.save(racksObject, propName(rack.ID), data)
}

// GetRack 读取货架定义
func (s *Store) GetRack(id string) (*backend.Rack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop := propName(id)
	if id == "" || !s.kv.exists(racksObject, prop) {
		return nil, fmt.Errorf("rack %q: %w", id, ErrNotFound)
	}
	data, err := s.kv.load(racksObject, prop)
	if err != nil {
		return nil, err
	}
	var rack backend.Rack
	if err := yaml.Unmarshal(data, &rack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rack %q: %w", id, err)
	}
	return &rack, nil
}

// SeedRacks 写入尚不存在的货架，已存在的保持不变
// 返回实际写入的数量
func (s *Store) SeedRacks(racks []backend.Rack) (int, error) {
	written := 0
	for _, r := range racks {
		s.mu.Lock()
		exists := s.kv.exists(racksObject, propName(r.ID))
		s.mu.Unlock()
		if exists {
			continue
		}
		if err := s.PutRack(r); err != nil {
			return written, err
		}
		written++
	}
	if written > 0 {
		s.logger.Info("已写入演示货架", zap.Int("count", written))
	}
	return written, nil
}
