package node

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/storage"
	"github.com/AvaProtocol/ap-oracle/version"
)

type HttpJsonResp[T any] struct {
	Data T `json:"data"`
}

// ChainStatus is what /status reports for one chain.
type ChainStatus struct {
	ChainID    string             `json:"chain_id"`
	ProviderID string             `json:"provider_id"`
	Cycles     uint64             `json:"cycles"`
	Latest     *model.CycleReport `json:"latest,omitempty"`
}

func (n *Node) newHttpServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		if n.isRunning() {
			return c.String(http.StatusOK, "up")
		}
		return c.String(http.StatusServiceUnavailable, "pending...")
	})

	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, &HttpJsonResp[map[string]string]{
			Data: map[string]string{"version": version.Get(), "revision": version.Commit()},
		})
	})

	e.GET("/status", func(c echo.Context) error {
		statuses, err := n.chainStatuses()
		if err != nil {
			n.logger.Errorf("error reading chain status %v", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot read chain status")
		}
		return c.JSON(http.StatusOK, &HttpJsonResp[[]ChainStatus]{Data: statuses})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{})))

	return e
}

func (n *Node) chainStatuses() ([]ChainStatus, error) {
	statuses := make([]ChainStatus, 0, len(n.providers))
	for _, p := range n.providers {
		s := ChainStatus{ChainID: p.ChainID(), ProviderID: p.ProviderID().Hex()}
		if n.db == nil {
			statuses = append(statuses, s)
			continue
		}

		latest, err := storage.LatestReport(n.db, p.ChainID())
		if err != nil && !errors.Is(err, storage.ErrReportNotFound) {
			return nil, err
		}
		s.Latest = latest

		if s.Cycles, err = storage.CycleCount(n.db, p.ChainID()); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}
