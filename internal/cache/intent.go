package cache

import (
	"context"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// Intents stores the dietary intent each client last selected
type Intents struct {
	store    Store
	fallback models.Intent
}

// NewIntents returns an intent preference store; fallback is returned for
// clients that never chose one.
func NewIntents(store Store, fallback models.Intent) *Intents {
	if fallback == "" {
		fallback = models.IntentGeneral
	}
	return &Intents{store: store, fallback: fallback}
}

func intentKey(client string) string {
	return "intent:" + client
}

// Get returns the stored intent for client
func (i *Intents) Get(ctx context.Context, client string) (models.Intent, error) {
	raw, ok, err := i.store.Get(ctx, intentKey(client))
	if err != nil {
		return i.fallback, err
	}
	if !ok {
		return i.fallback, nil
	}
	intent, err := models.ParseIntent(string(raw))
	if err != nil {
		return i.fallback, nil
	}
	return intent, nil
}

// Set stores the intent for client; it outlives the response cache TTL
func (i *Intents) Set(ctx context.Context, client string, intent models.Intent) error {
	return i.store.Persist(ctx, intentKey(client), []byte(intent))
}
