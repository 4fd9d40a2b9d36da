package fuzz

import (
	"context"

	fuzzmodel "chainscan/internal/model/fuzz"
)

// CampaignStore 活动数据访问契约
type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign *fuzzmodel.Campaign) error
	GetCampaignByID(ctx context.Context, id uint64) (*fuzzmodel.Campaign, error)
	GetCampaignByName(ctx context.Context, name string) (*fuzzmodel.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign *fuzzmodel.Campaign) error
	ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]*fuzzmodel.Campaign, int64, error)
	CreateSeed(ctx context.Context, seed *fuzzmodel.Seed) error
	GetSeedByDedupeKey(ctx context.Context, campaignID uint64, dedupeKey string) (*fuzzmodel.Seed, error)
	ListSeedsByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.Seed, error)
	CreateCoverageSignal(ctx context.Context, signal *fuzzmodel.CoverageSignal) error
	ListCoverageByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.CoverageSignal, error)
}

// CrashStore 崩溃报告数据访问契约(按活动归属)
type CrashStore interface {
	GetByCampaignAndSignature(ctx context.Context, campaignID uint64, signature string) (*fuzzmodel.CrashReport, error)
	CreateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error
	UpdateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error
	ListByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.CrashReport, error)
}
