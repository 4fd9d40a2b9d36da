// 文件处理工具包
// 扫描产物和语料库文件的读写
package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir 确保目录存在，不存在时递归创建
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("目录路径不能为空")
	}
	return os.MkdirAll(dir, 0755)
}

// WriteFile 写入文件内容，必要时创建父目录
// filePath: 文件路径
// content: 文件内容
// perm: 文件权限
func WriteFile(filePath string, content []byte, perm os.FileMode) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	return os.WriteFile(filePath, content, perm)
}

// ReadFile 读取文件内容
func ReadFile(filePath string) ([]byte, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("文件不存在: %s", filePath)
	}
	return os.ReadFile(filePath)
}

// WriteJSONFile 将对象序列化为JSON并写入文件
// 用于保存扫描产物和种子语料
func WriteJSONFile(filePath string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	return WriteFile(filePath, data, 0644)
}

// ReadJSONFile 读取JSON文件并反序列化到目标对象
func ReadJSONFile(filePath string, v interface{}) error {
	data, err := ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}
	return nil
}

// FileExists 判断文件是否存在
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
