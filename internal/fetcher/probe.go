package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/gocolly/colly/v2/proxy"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
)

// ErrProbeFailed is returned when the egress probe gets no usable answer.
var ErrProbeFailed = errors.New("egress probe failed")

// EgressInfo is the location report of the probe endpoint.
type EgressInfo struct {
	IP         string `json:"query"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
	ISP        string `json:"isp"`
}

// ProbeConfig configures an egress check.
type ProbeConfig struct {
	URL       string
	ProxyURLs []string
	Timeout   time.Duration
}

// ProbeEgress reports the public address requests leave from, through the same
// proxy rotation the fetcher uses.
func ProbeEgress(ctx context.Context, cfg ProbeConfig, log logger.Logger) (*EgressInfo, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	extensions.RandomUserAgent(c)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if len(cfg.ProxyURLs) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(cfg.ProxyURLs...)
		if err != nil {
			return nil, fmt.Errorf("configure proxy rotation: %w", err)
		}
		c.SetProxyFunc(switcher)
	}

	var (
		info     EgressInfo
		probeErr error
	)
	c.OnResponse(func(r *colly.Response) {
		if err := json.Unmarshal(r.Body, &info); err != nil {
			probeErr = fmt.Errorf("%w: decode: %w", ErrProbeFailed, err)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		probeErr = fmt.Errorf("%w: status %d: %w", ErrProbeFailed, r.StatusCode, err)
	})

	if err := c.Visit(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if probeErr != nil {
		return nil, probeErr
	}

	log.Info("Egress probe succeeded",
		logger.String("ip", info.IP),
		logger.String("country", info.Country),
		logger.String("region", info.RegionName),
		logger.String("city", info.City),
		logger.String("isp", info.ISP),
	)
	return &info, nil
}
