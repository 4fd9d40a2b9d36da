/**
 * 仓库:严重级别统计缓存
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描严重级别统计的Redis缓存(写穿,适合多实例部署)
 * @func: 单纯缓存访问,权威数据始终以MySQL重新统计为准
 */
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	scanmodel "chainscan/internal/model/scan"

	"github.com/go-redis/redis/v8"
)

// summaryTTL 统计缓存过期时间
// 过期后下一次读取回源重新统计
const summaryTTL = 24 * time.Hour

// SummaryRepository 严重级别统计缓存库
type SummaryRepository struct {
	client *redis.Client
}

// NewSummaryRepository 创建统计缓存库实例
func NewSummaryRepository(client *redis.Client) *SummaryRepository {
	return &SummaryRepository{
		client: client,
	}
}

// getSummaryKey 生成统计缓存键[KEY:chainscan:scan:summary:{scanID}]
func (r *SummaryRepository) getSummaryKey(scanID uint64) string {
	return fmt.Sprintf("chainscan:scan:summary:%d", scanID)
}

// GetSummary 读取扫描的严重级别统计
// 缓存未命中返回 nil, nil，调用方回源重新统计
func (r *SummaryRepository) GetSummary(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error) {
	key := r.getSummaryKey(scanID)

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	summary := scanmodel.SeveritySummary{}
	for field, value := range values {
		count, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		summary[scanmodel.Severity(field)] = count
	}
	return summary, nil
}

// SetSummary 整体写入扫描的严重级别统计
func (r *SummaryRepository) SetSummary(ctx context.Context, scanID uint64, summary scanmodel.SeveritySummary) error {
	key := r.getSummaryKey(scanID)

	fields := make(map[string]interface{}, len(summary))
	for severity, count := range summary {
		fields[string(severity)] = count
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
	pipe.Expire(ctx, key, summaryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return nil
}

// incrSeverityScript 仅在统计键仍存在时增量
// 键过期或Redis重启后直接HIncrBy会重建出只含增量的残缺统计，
// 此时跳过增量，让下一次读取回源重新统计
var incrSeverityScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[2])
	redis.call("EXPIRE", KEYS[1], ARGV[3])
	return 1
end
return 0`)

// IncrSeverity 增量更新单个严重级别的计数
// 统计键不存在时不做任何写入
func (r *SummaryRepository) IncrSeverity(ctx context.Context, scanID uint64, severity scanmodel.Severity, delta int64) error {
	key := r.getSummaryKey(scanID)

	ttlSeconds := int64(summaryTTL / time.Second)
	if err := incrSeverityScript.Run(ctx, r.client, []string{key}, string(severity), delta, ttlSeconds).Err(); err != nil {
		return fmt.Errorf("failed to increment severity count: %w", err)
	}
	return nil
}

// DeleteSummary 删除扫描的统计缓存
func (r *SummaryRepository) DeleteSummary(ctx context.Context, scanID uint64) error {
	key := r.getSummaryKey(scanID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return nil
}

// Ping 健康检查
func (r *SummaryRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
