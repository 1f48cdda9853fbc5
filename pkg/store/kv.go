package store

import (
	"encoding/hex"
	"fmt"

	"github.com/quasilyte/gdata/v2"
)

// kv 对象/属性两级的键值存储
// gdata 和内存实现共用这一层，Store 不关心数据落在哪里
type kv interface {
	exists(object, prop string) bool
	load(object, prop string) ([]byte, error)
	save(object, prop string, data []byte) error
}

// propName 把任意 ID 编码为安全的属性名
// gdata 的属性名直接映射为文件名，用户 ID 里可能有 "/" 之类的字符
func propName(id string) string {
	return "k" + hex.EncodeToString([]byte(id))
}

// gdataKV 基于 gdata.Manager 的持久化存储
type gdataKV struct {
	manager *gdata.Manager
}

func (g *gdataKV) exists(object, prop string) bool {
	return g.manager.ObjectPropExists(object, prop)
}

func (g *gdataKV) load(object, prop string) ([]byte, error) {
	data, err := g.manager.LoadObjectProp(object, prop)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", object, prop, err)
	}
	return data, nil
}

func (g *gdataKV) save(object, prop string, data []byte) error {
	if err := g.manager.SaveObjectProp(object, prop, data); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", object, prop, err)
	}
	return nil
}

// memoryKV 降级模式使用的内存存储，进程退出后数据丢失
type memoryKV struct {
	objects map[string]map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{objects: map[string]map[string][]byte{}}
}

func (m *memoryKV) exists(object, prop string) bool {
	_, ok := m.objects[object][prop]
	return ok
}

func (m *memoryKV) load(object, prop string) ([]byte, error) {
	data, ok := m.objects[object][prop]
	if !ok {
		return nil, fmt.Errorf("failed to load %s/%s: not found", object, prop)
	}
	return append([]byte(nil), data...), nil
}

func (m *memoryKV) save(object, prop string, data []byte) error {
	props, ok := m.objects[object]
	if !ok {
		props = map[string][]byte{}
		m.objects[object] = props
	}
	props[prop] = append([]byte(nil), data...)
	return nil
}
