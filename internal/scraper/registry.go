package scraper

import (
	"fmt"
	"sort"

	"showtime-scraper/internal/browser"
	"showtime-scraper/internal/config"
)

// Registry maps chain names to their adapters.
type Registry map[string]Adapter

// NewRegistry builds the adapters for every supported chain.
func NewRegistry(cfg config.ScraperConfig, renderer browser.Renderer, opts Options) (Registry, error) {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = cfg.WaitTimeout
	}

	multikino, err := NewMultikinoAdapter(cfg.MultikinoBase, renderer, opts)
	if err != nil {
		return nil, err
	}
	helios, err := NewHeliosAdapter(cfg.HeliosBase, renderer, opts)
	if err != nil {
		return nil, err
	}
	return Registry{
		multikino.Chain(): multikino,
		helios.Chain():    helios,
	}, nil
}

func (r Registry) Get(chain string) (Adapter, error) {
	adapter, ok := r[chain]
	if !ok {
		return nil, fmt.Errorf("no adapter for chain %q", chain)
	}
	return adapter, nil
}

func (r Registry) Chains() []string {
	chains := make([]string, 0, len(r))
	for chain := range r {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}
