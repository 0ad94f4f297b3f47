package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
	"github.com/dmitrijs2005/ipdash/internal/common"
	"github.com/dmitrijs2005/ipdash/internal/logging"
)

// Locator resolves geolocation data. *IPInfoClient implements it.
type Locator interface {
	MyLocation(ctx context.Context) (models.GeoLocation, error)
	Lookup(ctx context.Context, ip string) (models.GeoLocation, error)
}

// GeolocationService looks up addresses and manages the search history.
//
// Lookup records every successful search in the backend history in the
// background; Wait blocks until those saves have finished.
type GeolocationService interface {
	MyLocation(ctx context.Context) (models.GeoLocation, error)
	Lookup(ctx context.Context, ip string) (models.GeoLocation, error)
	History(ctx context.Context) ([]models.HistoryItem, error)
	DeleteHistory(ctx context.Context, ids []string) error
	Wait()
}

type geolocationService struct {
	api     client.API
	locator Locator
	log     logging.Logger

	pending sync.WaitGroup
}

func NewGeolocationService(api client.API, locator Locator, log logging.Logger) GeolocationService {
	if log == nil {
		log = logging.Discard()
	}
	return &geolocationService{api: api, locator: locator, log: log}
}

func (g *geolocationService) MyLocation(ctx context.Context) (models.GeoLocation, error) {
	geo, err := g.locator.MyLocation(ctx)
	if err != nil {
		return models.GeoLocation{}, fmt.Errorf("failed to get your location: %w", err)
	}
	return geo, nil
}

// Lookup validates ip, resolves it and saves the search without waiting for
// the backend. A failed save is logged only.
func (g *geolocationService) Lookup(ctx context.Context, ip string) (models.GeoLocation, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return models.GeoLocation{}, fmt.Errorf("%w: %q", common.ErrInvalidIP, ip)
	}

	geo, err := g.locator.Lookup(ctx, ip)
	if err != nil {
		return models.GeoLocation{}, fmt.Errorf("failed to lookup IP address: %w", err)
	}

	saveCtx := context.WithoutCancel(ctx)
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		if err := g.api.SaveSearch(saveCtx, ip, geo); err != nil {
			g.log.Warn(saveCtx, "failed to save search to history", "ip", ip, "error", err)
			return
		}
		g.log.Debug(saveCtx, "search saved to history", "ip", ip)
	}()

	return geo, nil
}

// History returns the saved searches. An unauthorized response yields an
// empty list rather than an error.
func (g *geolocationService) History(ctx context.Context) ([]models.HistoryItem, error) {
	items, err := g.api.History(ctx)
	if err != nil {
		if client.StatusOf(err) == http.StatusUnauthorized {
			g.log.Info(ctx, "not authenticated, returning empty history")
			return []models.HistoryItem{}, nil
		}
		return nil, fail(err, "Failed to fetch search history")
	}
	return items, nil
}

func (g *geolocationService) DeleteHistory(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("no items selected")
	}
	if err := g.api.DeleteHistory(ctx, ids); err != nil {
		return fail(err, "Failed to delete history items")
	}
	return nil
}

func (g *geolocationService) Wait() {
	g.pending.Wait()
}
