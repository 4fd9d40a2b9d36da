package redis

import (
	scannerservice "chainscan/internal/service/scanner"
)

// 缓存库必须满足服务层的统计缓存契约
var _ scannerservice.SummaryCache = (*SummaryRepository)(nil)
