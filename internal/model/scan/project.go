package scan

import (
	"encoding/json"

	"chainscan/internal/model/basemodel"
)

// Project 项目主表
// 被扫描的合约代码库，除Meta外创建后不可变
type Project struct {
	basemodel.BaseModel

	Name string `json:"name" gorm:"size:100;uniqueIndex;not null;comment:项目唯一标识名"`
	Path string `json:"path" gorm:"size:500;not null;comment:合约源码路径"`
	Meta string `json:"-" gorm:"type:json;comment:附加元数据(JSON)"`
}

// TableName 定义数据库表名
func (Project) TableName() string {
	return "projects"
}

// GetMeta 解析Meta字段
func (p *Project) GetMeta() map[string]interface{} {
	if p.Meta == "" {
		return map[string]interface{}{}
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(p.Meta), &meta); err != nil {
		return map[string]interface{}{}
	}
	return meta
}

// SetMeta 序列化并写入Meta字段
func (p *Project) SetMeta(meta map[string]interface{}) error {
	if meta == nil {
		p.Meta = ""
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	p.Meta = string(data)
	return nil
}
