package scan

// CreateProjectRequest 创建项目请求结构
type CreateProjectRequest struct {
	Name string                 `json:"name" binding:"required"` // 项目名称，必填且唯一
	Path string                 `json:"path" binding:"required"` // 合约源码路径，必填
	Meta map[string]interface{} `json:"meta"`                    // 附加元数据，可选
}

// DefaultTools 请求未指定工具时使用的默认工具集
func DefaultTools() []string {
	return []string{"slither", "mythril", "echidna"}
}

// StartScanRequest 发起扫描请求结构
type StartScanRequest struct {
	ProjectID uint64   `json:"project_id" binding:"required"` // 项目ID，必填
	Target    string   `json:"target" binding:"required"`     // 扫描目标，必填
	Tools     []string `json:"tools"`                         // 工具名列表，缺省为默认工具集
}

// QuickScanProject 快速扫描内嵌的项目描述
type QuickScanProject struct {
	Name string                 `json:"name" binding:"required"` // 项目名称，必填且唯一
	Path string                 `json:"path" binding:"required"` // 合约源码路径，必填
	Meta map[string]interface{} `json:"meta"`                    // 附加元数据，可选
}

// QuickScanRequest 快速扫描请求结构
// 一次调用完成项目创建和扫描发起
type QuickScanRequest struct {
	Project QuickScanProject `json:"project" binding:"required"` // 项目描述，必填
	Target  string           `json:"target"`                     // 扫描目标，缺省为项目路径
	Tools   []string         `json:"tools"`                      // 工具名列表，缺省为默认工具集
}

// ListScansRequest 扫描列表查询参数
type ListScansRequest struct {
	Page      int    `form:"page"`       // 页码，默认1
	PageSize  int    `form:"page_size"`  // 每页数量，默认10
	ProjectID uint64 `form:"project_id"` // 项目过滤，可选
	Status    string `form:"status"`     // 状态过滤，可选
}
