package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMatrixJSON(t *testing.T) {
	path := writeFile(t, "cities.json", `{
		"multikino": ["krakow", " warszawa "],
		"helios": {"wroclaw": 3, "krakow": 2}
	}`)

	matrix, err := LoadMatrix(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"helios", "multikino"}, matrix.Chains())
	assert.Equal(t, []Target{{City: "krakow"}, {City: "warszawa"}}, matrix["multikino"])
	assert.Equal(t, []Target{{City: "krakow", SiteIndex: 2}, {City: "wroclaw", SiteIndex: 3}}, matrix["helios"])
}

func TestLoadMatrixYAML(t *testing.T) {
	path := writeFile(t, "cities.yaml", "multikino:\n  - gdansk\nhelios:\n  lodz: 1\n")

	matrix, err := LoadMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, []Target{{City: "gdansk"}}, matrix["multikino"])
	assert.Equal(t, []Target{{City: "lodz", SiteIndex: 1}}, matrix["helios"])
}

func TestLoadMatrixRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"empty city":    `{"multikino": ["krakow", ""]}`,
		"zero index":    `{"helios": {"krakow": 0}}`,
		"index not int": `{"helios": {"krakow": "two"}}`,
		"scalar entry":  `{"multikino": "krakow"}`,
		"no chains":     `{}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMatrix(writeFile(t, "cities.json", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMatrixMissingFile(t *testing.T) {
	_, err := LoadMatrix(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "failed to read matrix file")
}

func TestLoadCinemaSeeds(t *testing.T) {
	path := writeFile(t, "cinemas.json", `{"cinemas": [
		{"name": "Helios", "city": "krakow", "number": 2, "address": "ul. Pawia 5"},
		{"name": "multikino", "city": "warszawa", "address": "ul. Zlota 59"}
	]}`)

	seeds, err := LoadCinemaSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, CinemaSeed{Name: "helios", City: "krakow", Number: 2, Address: "ul. Pawia 5"}, seeds[0])
	assert.Equal(t, "multikino", seeds[1].Name)
	assert.Zero(t, seeds[1].Number)

	_, err = LoadCinemaSeeds(writeFile(t, "bad.json", `{"cinemas": [{"name": "helios"}]}`))
	assert.ErrorContains(t, err, "missing name or city")
}
