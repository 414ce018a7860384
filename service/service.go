// Package service is the data access façade. It is the only package that
// calls the record store on behalf of a user, and every operation checks the
// authorization policy for the caller before touching the store.
package service

import (
	"context"
	"sort"
	"strings"

	"responseready/db"
	"responseready/models"
	"responseready/policy"

	"github.com/rs/zerolog"
)

// Accounts is the part of the session provider the façade needs for
// account mutations.
type Accounts interface {
	ProfileChanged(profile *models.UserProfile)
	SetPassword(ctx context.Context, uid, password string) error
}

// Service exposes typed operations per entity kind.
type Service struct {
	store    db.Store
	accounts Accounts
	log      zerolog.Logger
}

// New creates the façade over store.
func New(store db.Store, accounts Accounts, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		log:      logger.With().Str("component", "service").Logger(),
	}
}

// Capabilities lists the actions caller may perform, for menu rendering.
func (s *Service) Capabilities(caller *models.UserProfile) []policy.Action {
	if caller == nil {
		return nil
	}
	return policy.Actions(caller.Role)
}

// Authorize checks caller against action without touching the store.
func (s *Service) Authorize(caller *models.UserProfile, action policy.Action) error {
	return policy.Require(caller, action)
}

// sortNewestFirst orders incidents by creation time descending. Missing
// timestamps sort as the earliest possible time.
func sortNewestFirst(incidents []models.Incident) {
	sort.SliceStable(incidents, func(i, j int) bool {
		return incidents[i].CreatedAt.After(incidents[j].CreatedAt)
	})
}

// sortedFeed re-sorts every snapshot of an unordered feed.
type sortedFeed struct {
	db.Feed[models.Incident]
}

func (f sortedFeed) Next() ([]models.Incident, error) {
	incidents, err := f.Feed.Next()
	if err == nil {
		sortNewestFirst(incidents)
	}
	return incidents, err
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
