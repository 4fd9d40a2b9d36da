package fuzz

import (
	fuzzservice "chainscan/internal/service/fuzz"
	scannerservice "chainscan/internal/service/scanner"
)

// 仓库必须满足服务层的数据访问契约，签名偏离在编译期暴露
var (
	_ fuzzservice.CampaignStore = (*CampaignRepository)(nil)
	_ fuzzservice.CrashStore    = (*CrashRepository)(nil)
	_ scannerservice.CrashStore = (*CrashRepository)(nil)
)
