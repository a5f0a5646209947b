// Package backend builds the pluggable parts of the dashboard from the
// configuration: session store, draft repository, sync publisher, message
// composer and draft archiver.
package backend

import (
	"context"
	"errors"

	"kindlecrm/internal/amqp"
	"kindlecrm/internal/cache"
	"kindlecrm/internal/composer"
	"kindlecrm/internal/session"
	"kindlecrm/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Check is a readiness probe of one dependency.
type Check func(ctx context.Context) error

// Components is everything the web process needs. Publisher is nil when
// AMQP is not configured; SessionCleaner is nil for stores that expire
// entries on their own.
type Components struct {
	Sessions       session.Store
	SessionCleaner cache.Cleaner
	Drafts         storage.DraftRepository
	Publisher      *amqp.Client
	Composer       composer.Composer
	Checks         map[string]Check

	cleanups []CleanupFunc
}

func (c *Components) addCleanup(fn CleanupFunc) {
	c.cleanups = append(c.cleanups, fn)
}

func (c *Components) addCheck(name string, fn Check) {
	if c.Checks == nil {
		c.Checks = make(map[string]Check)
	}
	c.Checks[name] = fn
}

// Close releases resources in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		if err := c.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.cleanups = nil
	return errors.Join(errs...)
}
