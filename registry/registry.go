// Package registry provides corpus versioning and storage backends.
package registry

import (
	"context"
	"time"

	"github.com/distill-go/distill/core"
)

// Stage represents a deployment stage (e.g. dev, staging, production).
type Stage string

const (
	StageDev        Stage = "dev"
	StageStaging    Stage = "staging"
	StageProduction Stage = "production"
)

// VersionInfo holds metadata about a stored corpus version.
type VersionInfo struct {
	ID        string
	Version   string
	Stage     Stage
	Tags      []string
	Pairs     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter limits which corpora are returned by List.
type Filter struct {
	IDs    []string
	Stage  Stage
	Tags   []string
	Limit  int
	Offset int
}

// Registry stores and retrieves versioned evaluation corpora.
type Registry interface {
	Store(ctx context.Context, corpus *core.Corpus) error
	Get(ctx context.Context, id, version string) (*core.Corpus, error)
	GetProduction(ctx context.Context, id string) (*core.Corpus, error)
	List(ctx context.Context, filter Filter) ([]*core.Corpus, error)
	ListVersions(ctx context.Context, id string) ([]VersionInfo, error)
	Promote(ctx context.Context, id, version string, stage Stage) error
	Delete(ctx context.Context, id, version string) error
	Tag(ctx context.Context, id, version string, tags []string) error
}
