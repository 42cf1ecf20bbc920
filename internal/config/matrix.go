package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Target is one row of the scrape matrix: a city and, for chains that number
// their venues, the chain-assigned site index (0 when unused).
type Target struct {
	City      string
	SiteIndex int
}

// Matrix maps a chain name to the targets swept for it.
type Matrix map[string][]Target

// CinemaSeed is one entry of the cinema seed file.
type CinemaSeed struct {
	Name    string `mapstructure:"name"`
	City    string `mapstructure:"city"`
	Number  int    `mapstructure:"number"`
	Address string `mapstructure:"address"`
}

// LoadMatrix reads the chain -> cities file. A chain maps either to a list of
// city slugs or to an object of city slug -> site index:
//
//	{"multikino": ["krakow", "warszawa"], "helios": {"krakow": 2}}
//
// JSON and YAML are both accepted; the format follows the file extension.
func LoadMatrix(path string) (Matrix, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read matrix file %s: %w", path, err)
	}

	matrix := make(Matrix)
	for _, chain := range v.AllKeys() {
		// nested keys come back as "helios.krakow"; only the chain matters here
		name := strings.SplitN(chain, ".", 2)[0]
		if _, seen := matrix[name]; seen {
			continue
		}
		targets, err := parseTargets(v.Get(name))
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", name, err)
		}
		matrix[name] = targets
	}
	if len(matrix) == 0 {
		return nil, fmt.Errorf("matrix file %s defines no chains", path)
	}
	return matrix, nil
}

func parseTargets(raw any) ([]Target, error) {
	switch value := raw.(type) {
	case []any:
		targets := make([]Target, 0, len(value))
		for _, item := range value {
			city, ok := item.(string)
			if !ok || strings.TrimSpace(city) == "" {
				return nil, fmt.Errorf("invalid city entry %v", item)
			}
			targets = append(targets, Target{City: strings.TrimSpace(city)})
		}
		return targets, nil
	case map[string]any:
		targets := make([]Target, 0, len(value))
		for city, idx := range value {
			n, err := toInt(idx)
			if err != nil {
				return nil, fmt.Errorf("city %s: %w", city, err)
			}
			if n < 1 {
				return nil, fmt.Errorf("city %s: site index must be positive, got %d", city, n)
			}
			targets = append(targets, Target{City: city, SiteIndex: n})
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].City < targets[j].City })
		return targets, nil
	default:
		return nil, fmt.Errorf("unsupported matrix entry of type %T", raw)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("site index %v is not a number", v)
	}
}

// Chains returns the chain names in a stable order.
func (m Matrix) Chains() []string {
	chains := make([]string, 0, len(m))
	for chain := range m {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// LoadCinemaSeeds reads {"cinemas": [...]} from path.
func LoadCinemaSeeds(path string) ([]CinemaSeed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read cinema file %s: %w", path, err)
	}

	var seeds []CinemaSeed
	if err := v.UnmarshalKey("cinemas", &seeds); err != nil {
		return nil, fmt.Errorf("failed to decode cinemas: %w", err)
	}
	for i, s := range seeds {
		if s.Name == "" || s.City == "" {
			return nil, fmt.Errorf("cinema entry %d is missing name or city", i)
		}
		seeds[i].Name = strings.ToLower(s.Name)
	}
	return seeds, nil
}
