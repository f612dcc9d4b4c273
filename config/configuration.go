package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Configuration 配置接口（类似于 .NET Core IConfiguration）
type Configuration interface {
	// Get 获取配置值
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Bind 绑定配置到结构体
	Bind(key string, target any) error
	// GetAll 获取所有配置
	GetAll() map[string]any
}

// ConfigurationSource 配置源接口
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// ConfigurationBuilder 配置构建器
type ConfigurationBuilder struct {
	sources []ConfigurationSource
	mu      sync.RWMutex
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{
		sources: make([]ConfigurationSource, 0),
	}
}

// Add 添加配置源，后添加的覆盖先添加的
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&JsonFileSource{Path: path, Optional: isOptional(optional)})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&YamlFileSource{Path: path, Optional: isOptional(optional)})
}

// AddDotEnv 添加 .env 文件配置源
func (b *ConfigurationBuilder) AddDotEnv(path, prefix string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&DotEnvSource{Path: path, Prefix: prefix, Optional: isOptional(optional)})
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	return b.Add(NewEtcdSource(opts))
}

func isOptional(optional []bool) bool {
	return len(optional) > 0 && optional[0]
}

// Build 构建一次性加载的配置
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	return b.BuildReloadable()
}

// BuildReloadable 构建可重新加载的配置
func (b *ConfigurationBuilder) BuildReloadable() (*ReloadableConfiguration, error) {
	b.mu.RLock()
	sources := make([]ConfigurationSource, len(b.sources))
	copy(sources, b.sources)
	b.mu.RUnlock()

	rc := newReloadableConfiguration(sources)
	if err := rc.load(); err != nil {
		return nil, err
	}
	return rc, nil
}

// loadSources 按顺序加载所有配置源（后面的会覆盖前面的）
func loadSources(sources []ConfigurationSource) (map[string]any, error) {
	data := make(map[string]any)
	for _, source := range sources {
		values, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config source %s: %w", source.Name(), err)
		}
		mergeMaps(data, values)
	}
	return data, nil
}

// configuration 是 ValueStore 上的一个视图，prefix 为空时表示根节点。
// 节视图总是读取最新数据，重新加载后无需重新获取。
type configuration struct {
	store  *ValueStore
	prefix []string
}

// NewConfiguration 从已有数据创建配置
func NewConfiguration(data map[string]any) Configuration {
	store := NewValueStore()
	copied := make(map[string]any)
	mergeMaps(copied, data)
	store.Store(copied)
	return &configuration{store: store}
}

// Get 获取配置值
func (c *configuration) Get(key string) string {
	value := c.lookup(key)
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetWithDefault 获取配置值，如果不存在则返回默认值
func (c *configuration) GetWithDefault(key, defaultValue string) string {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt 获取整数配置值
func (c *configuration) GetInt(key string) (int, error) {
	value := c.lookup(key)
	if value == nil {
		return 0, fmt.Errorf("key %s not found", key)
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("cannot convert %v to int", value)
	}
}

// GetBool 获取布尔配置值
func (c *configuration) GetBool(key string) (bool, error) {
	value := c.lookup(key)
	if value == nil {
		return false, fmt.Errorf("key %s not found", key)
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("cannot convert %v to bool", value)
	}
}

// GetSection 获取配置节
func (c *configuration) GetSection(key string) Configuration {
	if key == "" {
		return c
	}
	prefix := make([]string, 0, len(c.prefix)+2)
	prefix = append(prefix, c.prefix...)
	prefix = append(prefix, globalPathCache.GetPathSegments(key)...)
	return &configuration{store: c.store, prefix: prefix}
}

// Bind 绑定配置到结构体，使用 JSON 序列化/反序列化进行转换
func (c *configuration) Bind(key string, target any) error {
	data := c.lookup(key)
	if data == nil {
		return fmt.Errorf("key %s not found", key)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// GetAll 获取所有配置的副本
func (c *configuration) GetAll() map[string]any {
	result := make(map[string]any)
	if m, ok := c.lookup("").(map[string]any); ok {
		mergeMaps(result, m)
	}
	return result
}

// lookup 通过路径获取值（支持 "a:b:c" 或 "a.b.c"），键名大小写不敏感
func (c *configuration) lookup(path string) any {
	current := any(c.store.Load())
	for _, part := range c.prefix {
		if current = child(current, part); current == nil {
			return nil
		}
	}
	if path == "" {
		return current
	}
	for _, part := range globalPathCache.GetPathSegments(path) {
		if current = child(current, part); current == nil {
			return nil
		}
	}
	return current
}

func child(node any, key string) any {
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	if v, ok := m[key]; ok {
		return v
	}
	if k, ok := findKey(m, key); ok {
		return m[k]
	}
	return nil
}

// findKey 按大小写不敏感查找已存在的键
func findKey(m map[string]any, key string) (string, bool) {
	for k := range m {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

// mergeMaps 把 src 深度合并进 dst，同名（大小写不敏感）的节递归合并
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		key := k
		if _, exists := dst[k]; !exists {
			if existing, ok := findKey(dst, k); ok {
				key = existing
			}
		}

		if srcMap, ok := v.(map[string]any); ok {
			dstMap, ok := dst[key].(map[string]any)
			if !ok {
				dstMap = make(map[string]any)
				dst[key] = dstMap
			}
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = v
	}
}
