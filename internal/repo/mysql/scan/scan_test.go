package scan

import (
	fuzzservice "chainscan/internal/service/fuzz"
	reportservice "chainscan/internal/service/report"
	scannerservice "chainscan/internal/service/scanner"
)

// 仓库必须满足服务层的数据访问契约，签名偏离在编译期暴露
var (
	_ scannerservice.ProjectStore = (*ProjectRepository)(nil)
	_ scannerservice.ScanStore    = (*ScanRepository)(nil)
	_ scannerservice.FindingStore = (*FindingRepository)(nil)
	_ fuzzservice.ScanReader      = (*ScanRepository)(nil)
	_ reportservice.ScanSource    = (*ScanRepository)(nil)
	_ reportservice.FindingSource = (*FindingRepository)(nil)
)
