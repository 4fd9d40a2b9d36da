package fuzz

// CreateCampaignRequest 创建活动请求结构
type CreateCampaignRequest struct {
	Name     string `json:"name" binding:"required"`   // 活动名称，必填
	Target   string `json:"target" binding:"required"` // 模糊测试目标，必填
	Strategy string `json:"strategy"`                  // 策略，可选
}

// TransitionCampaignRequest 活动状态转换请求结构
type TransitionCampaignRequest struct {
	Status CampaignStatus `json:"status" binding:"required"` // 目标状态，必填
}

// AddSeedRequest 添加种子请求结构
type AddSeedRequest struct {
	Source     string `json:"source"`                        // 种子来源，可选
	CorpusPath string `json:"corpus_path"`                   // 语料文件路径，可选
	DedupeKey  string `json:"dedupe_key" binding:"required"` // 去重键，必填
}

// AddCoverageRequest 覆盖率信号注入请求结构
type AddCoverageRequest struct {
	RunIdentifier string `json:"run_identifier"`                 // 运行实例标识，缺省为default
	CoveredEdges  int64  `json:"covered_edges" binding:"min=0"`  // 覆盖边数
}

// ReportCrashRequest 崩溃报告注入请求结构
type ReportCrashRequest struct {
	Signature      string `json:"signature" binding:"required"` // 崩溃签名，必填
	InputReference string `json:"input_reference"`              // 触发输入引用，可选
	Stacktrace     string `json:"stacktrace"`                   // 调用栈，可选
}

// CampaignDetailResponse 活动详情响应结构
type CampaignDetailResponse struct {
	Campaign *Campaign        `json:"campaign"`
	Metrics  CampaignMetrics  `json:"metrics"`
	Seeds    []Seed           `json:"seeds"`
	Coverage []CoverageSignal `json:"coverage"`
	Crashes  []CrashReport    `json:"crashes"`
}
