// Package identity resolves which family and user a request acts for.
//
// Tiers are tried in order: explicit arguments, the authenticated caller's
// token, the identity persisted for the calling client, and finally a demo
// identity when demo mode is enabled. When no tier resolves, Resolve fails
// with IDENTITY_UNRESOLVED rather than guessing.
package identity

import (
	"context"
	"errors"
	"fmt"

	"family-assistant/internal/common/auth"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/store"
	"family-assistant/internal/models"
)

// Tier names the waterfall step that produced an identity.
type Tier string

const (
	TierExplicit  Tier = "explicit"
	TierAuth      Tier = "auth"
	TierPersisted Tier = "persisted"
	TierDemo      Tier = "demo"
)

type Identity struct {
	FamilyID string `json:"familyId"`
	UserID   string `json:"userId"`
	Tier     Tier   `json:"tier"`
}

// TokenValidator introspects bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// Persistence stores the last identity resolved for a client.
type Persistence interface {
	Load(ctx context.Context, clientID string) (*Identity, error)
	Save(ctx context.Context, clientID string, id Identity) error
}

type Options struct {
	AllowDemo    bool
	DemoFamilyID string
	DemoUserID   string
}

type Resolver struct {
	validator TokenValidator
	members   store.Store
	persist   Persistence
	opts      Options
	logger    logger.Logger
}

// NewResolver builds a resolver. validator, members and persist may each be
// nil, which disables the tiers that need them.
func NewResolver(validator TokenValidator, members store.Store, persist Persistence, opts Options, log logger.Logger) *Resolver {
	return &Resolver{
		validator: validator,
		members:   members,
		persist:   persist,
		opts:      opts,
		logger:    log.With(map[string]interface{}{"component": "identity"}),
	}
}

type clientKey struct{}

// WithClientID tags ctx with the calling client's stable id, which keys the
// persisted tier.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey{}, clientID)
}

func clientIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(clientKey{}).(string)
	return id
}

// Resolve walks the tiers for the given explicit familyID and userID.
func (r *Resolver) Resolve(ctx context.Context, familyID, userID string) (*Identity, error) {
	clientID := clientIDFrom(ctx)

	if familyID != "" {
		id := &Identity{FamilyID: familyID, UserID: userID, Tier: TierExplicit}
		if id.UserID == "" {
			if fromToken, err := r.fromToken(ctx); err == nil && fromToken.FamilyID == familyID {
				id.UserID = fromToken.UserID
			}
		}
		r.resolved(ctx, clientID, id)
		return id, nil
	}

	id, err := r.fromToken(ctx)
	if err == nil {
		r.resolved(ctx, clientID, id)
		return id, nil
	}
	r.logger.Debug("Auth tier did not resolve", map[string]interface{}{"reason": err.Error()})

	if r.persist != nil && clientID != "" {
		stored, err := r.persist.Load(ctx, clientID)
		switch {
		case err != nil:
			r.logger.Warn("Persisted identity lookup failed", map[string]interface{}{
				"clientId": clientID,
				"error":    err.Error(),
			})
		case stored != nil && stored.FamilyID != "":
			stored.Tier = TierPersisted
			r.logTier(stored)
			return stored, nil
		}
	}

	if r.opts.AllowDemo {
		id := &Identity{FamilyID: r.opts.DemoFamilyID, UserID: r.opts.DemoUserID, Tier: TierDemo}
		r.logger.Warn("Using demo identity", map[string]interface{}{"familyId": id.FamilyID})
		return id, nil
	}

	r.logger.Warn("No identity tier resolved", map[string]interface{}{"clientId": clientID})
	return nil, apperrors.NewIdentityUnresolvedError("no explicit, authenticated or persisted identity")
}

var errNoToken = errors.New("no bearer token in context")

func (r *Resolver) fromToken(ctx context.Context) (*Identity, error) {
	if r.validator == nil {
		return nil, errNoToken
	}
	token, ok := auth.TokenFromContext(ctx)
	if !ok {
		return nil, errNoToken
	}

	info, err := r.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.FamilyID != "" {
		return &Identity{FamilyID: info.FamilyID, UserID: info.Sub, Tier: TierAuth}, nil
	}
	if r.members == nil {
		return nil, fmt.Errorf("token for %s carries no family and no membership store is configured", info.Sub)
	}

	var m models.Membership
	if err := r.members.Get(ctx, models.CollectionMembers, info.Sub, &m); err != nil {
		return nil, fmt.Errorf("membership lookup for %s: %w", info.Sub, err)
	}
	if m.FamilyID == "" {
		return nil, fmt.Errorf("membership for %s has no family", info.Sub)
	}
	return &Identity{FamilyID: m.FamilyID, UserID: info.Sub, Tier: TierAuth}, nil
}

func (r *Resolver) resolved(ctx context.Context, clientID string, id *Identity) {
	r.logTier(id)
	if r.persist == nil || clientID == "" {
		return
	}
	if err := r.persist.Save(ctx, clientID, *id); err != nil {
		r.logger.Warn("Failed to persist identity", map[string]interface{}{
			"clientId": clientID,
			"error":    err.Error(),
		})
	}
}

func (r *Resolver) logTier(id *Identity) {
	r.logger.Info("Identity resolved", map[string]interface{}{
		"tier":     string(id.Tier),
		"familyId": id.FamilyID,
		"userId":   id.UserID,
	})
}
