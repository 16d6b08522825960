// Package contacts defines the CRM-side collaborator contracts: the facts a
// contact exposes to condition evaluation and the tag mutation surface.
package contacts

import (
	"context"
	"errors"

	"github.com/hivecrm/journey/pkg/models"
)

// ErrContactNotFound indicates the contact does not exist in the CRM.
var ErrContactNotFound = errors.New("contact not found")

// FactsProvider supplies the flattened fact map conditions evaluate against.
type FactsProvider interface {
	Facts(ctx context.Context, accountID, contactID string) (*models.ContactFacts, error)
}

// TagWriter applies tag mutations to contacts. Both operations are
// idempotent: adding a present tag or removing an absent one succeeds.
type TagWriter interface {
	AddTag(ctx context.Context, accountID, contactID, tag string) error
	RemoveTag(ctx context.Context, accountID, contactID, tag string) error
}
